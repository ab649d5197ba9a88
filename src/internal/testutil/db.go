// Package testutil holds helpers shared by tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/softwareheritage/swh-dedup/src/internal/dbutil"
	"github.com/softwareheritage/swh-dedup/src/internal/require"
	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
)

// UniqueString returns prefix followed by a random suffix.
func UniqueString(prefix string) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return prefix + hex.EncodeToString(b)
}

// GenerateEphemeralDBName returns a database name that is unique to this run of t.
func GenerateEphemeralDBName(t testing.TB) string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, strings.ToLower(t.Name()))
	if len(name) > 32 {
		name = name[:32]
	}
	return UniqueString("test_" + name + "_")
}

// OpenDB opens a database that is closed when the test ends.
func OpenDB(t testing.TB, opts ...dbutil.Option) *sqlutil.DB {
	db, err := dbutil.NewDB(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

// NewTestDB opens an empty SQLite database in the test's temporary directory.
func NewTestDB(t testing.TB) *sqlutil.DB {
	return OpenDB(t, dbutil.WithSQLiteFile(filepath.Join(t.TempDir(), "dedup.db")))
}
