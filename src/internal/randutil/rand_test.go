package randutil

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/docker/go-units"
	"github.com/softwareheritage/swh-dedup/src/internal/require"
)

func BenchmarkReader(b *testing.B) {
	random := rand.New(rand.NewSource(1))
	b.SetBytes(10 * units.MB)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := &bytes.Buffer{}
		_, err := io.Copy(buf, NewBytesReader(random, 10*units.MB))
		require.NoError(b, err)
	}
}

func TestBytesAreReproducible(t *testing.T) {
	a := Bytes(rand.New(rand.NewSource(42)), 1000)
	b := Bytes(rand.New(rand.NewSource(42)), 1000)
	require.Equal(t, a, b)
	require.NotEqual(t, a, Bytes(rand.New(rand.NewSource(43)), 1000))
}

func TestText(t *testing.T) {
	buf := Text(rand.New(rand.NewSource(1)), 1000)
	for _, c := range buf {
		require.True(t, bytes.IndexByte(letters, c) >= 0, "unexpected byte %q", c)
	}
}

func TestBytesReader(t *testing.T) {
	buf, err := io.ReadAll(NewBytesReader(rand.New(rand.NewSource(1)), 12345))
	require.NoError(t, err)
	require.Len(t, buf, 12345)
}
