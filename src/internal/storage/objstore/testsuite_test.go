package objstore

import (
	"io"
	"math/rand"
	"testing"

	"github.com/softwareheritage/swh-dedup/src/internal/pctx"
	"github.com/softwareheritage/swh-dedup/src/internal/randutil"
	"github.com/softwareheritage/swh-dedup/src/internal/require"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
)

func testStore(t *testing.T, newStore func(t testing.TB) Store) {
	t.Run("PutGet", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		s := newStore(t)
		data := randutil.Bytes(rand.New(rand.NewSource(1)), 100000)
		id := swhhash.Sum(data)
		require.NoError(t, s.Put(ctx, id, data))
		require.Equal(t, data, requireGet(t, s, id))
	})
	t.Run("Empty", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		s := newStore(t)
		id := swhhash.Sum(nil)
		require.NoError(t, s.Put(ctx, id, nil))
		require.Len(t, requireGet(t, s, id), 0)
	})
	t.Run("NotFound", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		s := newStore(t)
		id := swhhash.Sum([]byte("absent"))
		_, err := s.Get(ctx, id)
		require.YesError(t, err)
		require.True(t, IsNotExist(err), "want not-exist, got %v", err)
		ok, err := s.Exists(ctx, id)
		require.NoError(t, err)
		require.False(t, ok)
	})
	t.Run("Exists", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		s := newStore(t)
		data := []byte("hello world\n")
		id := swhhash.Sum(data)
		require.NoError(t, s.Put(ctx, id, data))
		ok, err := s.Exists(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
	})
	t.Run("Overwrite", func(t *testing.T) {
		ctx := pctx.TestContext(t)
		s := newStore(t)
		data := []byte("same bytes")
		id := swhhash.Sum(data)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Put(ctx, id, data))
		}
		require.Equal(t, data, requireGet(t, s, id))
	})
}

func requireGet(t testing.TB, s Fetcher, id swhhash.ID) []byte {
	t.Helper()
	ctx := pctx.TestContext(t)
	rc, err := s.Get(ctx, id)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}
