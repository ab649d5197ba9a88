// Package randutil generates reproducible test data.
package randutil

import (
	"io"
	"math/rand"
)

var letters = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ \n")

// Bytes returns n bytes drawn uniformly from the whole byte range.
func Bytes(random *rand.Rand, n int) []byte {
	bs := make([]byte, n)
	random.Read(bs) //nolint:errcheck,gosec
	return bs
}

// Text returns n bytes of letters, spaces and newlines, which look like source code to a file
// type sniffer.
func Text(random *rand.Rand, n int) []byte {
	bs := make([]byte, n)
	for i := range bs {
		bs[i] = letters[random.Intn(len(letters))]
	}
	return bs
}

type bytesReader struct {
	random *rand.Rand
	n      int64
}

// NewBytesReader returns a reader of n random bytes.
func NewBytesReader(random *rand.Rand, n int64) io.Reader {
	return &bytesReader{random: random, n: n}
}

func (br *bytesReader) Read(data []byte) (int, error) {
	if br.n == 0 {
		return 0, io.EOF
	}
	size := len(data)
	if int64(size) > br.n {
		size = int(br.n)
	}
	br.random.Read(data[:size]) //nolint:errcheck,gosec
	br.n -= int64(size)
	return size, nil
}
