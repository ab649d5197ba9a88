package objstore

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/ulikunitz/xz"
)

// Compression is how objects are stored at rest.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZlib Compression = "zlib"
	CompressionZstd Compression = "zstd"
	// CompressionLZMA is the xz container, as written by Python's lzma module.
	CompressionLZMA Compression = "lzma"
)

// ParseCompression validates a compression name; "" means none.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case "":
		return CompressionNone, nil
	case CompressionNone, CompressionGzip, CompressionZlib, CompressionZstd, CompressionLZMA:
		return c, nil
	default:
		return "", errors.Errorf("unknown object compression %q", s)
	}
}

// decompress wraps r; closing the result closes r.
func decompress(c Compression, r io.ReadCloser) (io.ReadCloser, error) {
	switch c {
	case "", CompressionNone:
		return r, nil
	case CompressionGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.EnsureStack(err)
		}
		return &readCloser{Reader: gr, closers: []io.Closer{gr, r}}, nil
	case CompressionZlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, errors.EnsureStack(err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, r}}, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.EnsureStack(err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), r}}, nil
	case CompressionLZMA:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.EnsureStack(err)
		}
		return &readCloser{Reader: xr, closers: []io.Closer{r}}, nil
	default:
		return nil, errors.Errorf("unknown object compression %q", c)
	}
}

// compress returns a writer that compresses into w.  Closing it flushes the compressor but does
// not close w.
func compress(c Compression, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case "", CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZlib:
		return zlib.NewWriter(w), nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		return zw, errors.EnsureStack(err)
	case CompressionLZMA:
		xw, err := xz.NewWriter(w)
		return xw, errors.EnsureStack(err)
	default:
		return nil, errors.Errorf("unknown object compression %q", c)
	}
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var errs []error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.EnsureStack(errors.Join(errs...))
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
