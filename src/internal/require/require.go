// Package require is testify's require package plus a few helpers used across the repository.
package require

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// Re-exported assertions.
var (
	Equal          = require.Equal
	NotEqual       = require.NotEqual
	Len            = require.Len
	True           = require.True
	False          = require.False
	Nil            = require.Nil
	NotNil         = require.NotNil
	Zero           = require.Zero
	NotZero        = require.NotZero
	ErrorIs        = require.ErrorIs
	ErrorContains  = require.ErrorContains
	ElementsMatch  = require.ElementsMatch
	Empty          = require.Empty
	NotEmpty       = require.NotEmpty
	Greater        = require.Greater
	GreaterOrEqual = require.GreaterOrEqual
	LessOrEqual    = require.LessOrEqual
	Contains       = require.Contains
)

// NoError fails the test if err is non-nil, printing the error with its stack.
func NoError(t testing.TB, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		require.FailNow(t, "unexpected error: "+formatErr(err), msgAndArgs...)
	}
}

// YesError fails the test if err is nil.
func YesError(t testing.TB, err error, msgAndArgs ...interface{}) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
}

// NoDiff fails the test if want and got differ according to cmp.Diff.
func NoDiff(t testing.TB, want, got interface{}, opts []cmp.Option, msgAndArgs ...interface{}) {
	t.Helper()
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		require.FailNow(t, "unexpected difference (-want +got):\n"+diff, msgAndArgs...)
	}
}
