package objstore

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/softwareheritage/swh-dedup/src/internal/pctx"
	"github.com/softwareheritage/swh-dedup/src/internal/require"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
	"gocloud.dev/blob/memblob"
)

var allCompressions = []Compression{CompressionNone, CompressionGzip, CompressionZlib, CompressionZstd, CompressionLZMA}

func TestPathSlicing(t *testing.T) {
	slicing, err := ParseSlicing("0:2/2:4")
	require.NoError(t, err)
	for _, c := range allCompressions {
		c := c
		t.Run(string(c), func(t *testing.T) {
			testStore(t, func(t testing.TB) Store {
				return NewPathSlicing(t.TempDir(), slicing, c)
			})
		})
	}
}

func TestMemBucket(t *testing.T) {
	for _, c := range allCompressions {
		c := c
		t.Run(string(c), func(t *testing.T) {
			testStore(t, func(t testing.TB) Store {
				b := NewBucket("mem", memblob.OpenBucket(nil), Slicing{{0, 2}}, c)
				t.Cleanup(func() { b.Close() })
				return b
			})
		})
	}
}

func TestFileBucket(t *testing.T) {
	testStore(t, func(t testing.TB) Store {
		ctx := pctx.TestContext(t)
		b, err := OpenBucket(ctx, "file://"+filepath.ToSlash(t.TempDir()), nil, CompressionGzip)
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestLayout(t *testing.T) {
	ctx := pctx.TestContext(t)
	root := t.TempDir()
	slicing, err := ParseSlicing("0:2/2:4")
	require.NoError(t, err)
	s := NewPathSlicing(root, slicing, CompressionNone)
	data := []byte("hello world\n")
	id := swhhash.Sum(data)
	require.NoError(t, s.Put(ctx, id, data))
	h := id.HexString()
	onDisk, err := os.ReadFile(filepath.Join(root, h[0:2], h[2:4], h))
	require.NoError(t, err)
	require.Equal(t, data, onDisk)
	staged, err := os.ReadDir(filepath.Join(root, "staging"))
	require.NoError(t, err)
	require.Len(t, staged, 0)
}

// Objects written by other tools, e.g. Python's gzip module, must be readable.
func TestReadsForeignGzip(t *testing.T) {
	root := t.TempDir()
	data := bytes.Repeat([]byte("int main() { return 0; }\n"), 100)
	id := swhhash.Sum(data)
	h := id.HexString()
	dir := filepath.Join(root, h[0:2], h[2:4])
	require.NoError(t, os.MkdirAll(dir, 0o755))
	buf := &bytes.Buffer{}
	gw := gzip.NewWriter(buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, h), buf.Bytes(), 0o644))

	slicing, err := ParseSlicing("0:2/2:4")
	require.NoError(t, err)
	require.Equal(t, data, requireGet(t, NewPathSlicing(root, slicing, CompressionGzip), id))
}

func TestParseSlicing(t *testing.T) {
	s, err := ParseSlicing("0:2/2:4")
	require.NoError(t, err)
	require.Equal(t, Slicing{{0, 2}, {2, 4}}, s)
	require.Equal(t, "0:2/2:4", s.String())
	id, err := swhhash.Parse("34973274ccef6ab4dfaaf86599792fa9c3fe4689")
	require.NoError(t, err)
	require.Equal(t, "34/97/34973274ccef6ab4dfaaf86599792fa9c3fe4689", s.Path(id))

	empty, err := ParseSlicing("")
	require.NoError(t, err)
	require.Equal(t, "34973274ccef6ab4dfaaf86599792fa9c3fe4689", empty.Path(id))

	for _, bad := range []string{"0-2", "a:2", "2:2", "0:41", "-1:2", "0:2/"} {
		_, err := ParseSlicing(bad)
		require.YesError(t, err, bad)
	}
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("")
	require.NoError(t, err)
	require.Equal(t, CompressionNone, c)
	_, err = ParseCompression("bz2")
	require.YesError(t, err)
}

func TestOpen(t *testing.T) {
	ctx := pctx.TestContext(t)
	s, err := Open(ctx, Config{Root: t.TempDir(), Slicing: "0:2", Compression: "zstd"})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	s, err = Open(ctx, Config{URL: "mem://", Slicing: "0:2"})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = Open(ctx, Config{Slicing: "0:2"})
	require.YesError(t, err)
}

func TestCheck(t *testing.T) {
	ctx := pctx.TestContext(t)
	s := NewPathSlicing(t.TempDir(), Slicing{{0, 2}}, CompressionZstd)
	data := []byte("some content\n")
	id := swhhash.Sum(data)
	require.NoError(t, s.Put(ctx, id, data))
	require.NoError(t, Check(ctx, s, id))

	wrong := swhhash.Sum([]byte("other content\n"))
	require.NoError(t, s.Put(ctx, wrong, data))
	require.ErrorIs(t, Check(ctx, s, wrong), ErrCorrupt)

	missing := swhhash.Sum([]byte("missing"))
	require.True(t, IsNotExist(Check(ctx, s, missing)))
}
