package chunk

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"github.com/chmduquesne/rollinghash"
	"github.com/klauspost/compress/zlib"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
)

// Chunk describes one piece of a chunked stream.
type Chunk struct {
	ID               swhhash.ID
	Position         int64
	Length           int
	CompressedLength int
}

// Chunker reads a stream and returns its chunks in order.
type Chunker struct {
	r         *bufio.Reader
	params    Params
	hash      rollinghash.Hash64
	window    []byte
	mask      uint64
	buf       []byte
	pos       int64
	done      bool
	lastBytes []byte
}

// initialBufferSize caps the up-front allocation of a Chunker's chunk buffer.  Larger chunks
// grow it as they are read.
const initialBufferSize = 64 << 10

// NewChunker validates params and returns a Chunker over r.
func NewChunker(params Params, r io.Reader) (*Chunker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	h, err := newRollingHash(params)
	if err != nil {
		return nil, err
	}
	c := &Chunker{
		r:      bufio.NewReaderSize(r, 64*1024),
		params: params,
		hash:   h,
		window: make([]byte, params.WindowSize),
		mask:   params.splitMask(),
		buf:    make([]byte, 0, min(params.MaxBlockSize, initialBufferSize)),
	}
	return c, nil
}

func (c *Chunker) resetHash() {
	c.hash.Reset()
	c.hash.Write(c.window) //nolint:errcheck
}

// Next returns the next chunk, or io.EOF after the last one.  An empty stream has no chunks.
func (c *Chunker) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}
	c.resetHash()
	c.buf = c.buf[:0]
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.done = true
				if len(c.buf) == 0 {
					return Chunk{}, io.EOF
				}
				return c.emit()
			}
			return Chunk{}, errors.EnsureStack(err)
		}
		c.buf = append(c.buf, b)
		c.hash.Roll(b)
		n := len(c.buf)
		if n >= c.params.MaxBlockSize || (n >= c.params.MinBlockSize && c.hash.Sum64()&c.mask == c.mask) {
			return c.emit()
		}
	}
}

// Bytes returns the data of the chunk most recently returned by Next.  It is only valid until
// the next call to Next.
func (c *Chunker) Bytes() []byte {
	return c.lastBytes
}

func (c *Chunker) emit() (Chunk, error) {
	clen, err := CompressedSize(c.buf)
	if err != nil {
		return Chunk{}, err
	}
	ch := Chunk{
		ID:               swhhash.Sum(c.buf),
		Position:         c.pos,
		Length:           len(c.buf),
		CompressedLength: clen,
	}
	c.pos += int64(len(c.buf))
	c.lastBytes = c.buf
	return ch, nil
}

// ChunkFunc is called with each chunk and its data.  data is only valid during the call.
type ChunkFunc = func(ch Chunk, data []byte) error

// ComputeChunks splits the stream in r and calls cb for every chunk, in order.
func ComputeChunks(params Params, r io.Reader, cb ChunkFunc) error {
	c, err := NewChunker(params, r)
	if err != nil {
		return err
	}
	for {
		ch, err := c.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := cb(ch, c.Bytes()); err != nil {
			return err
		}
	}
}

// Split chunks data held in memory.  The parts of a multipart object are chunked as one stream.
func Split(params Params, parts ...[]byte) ([]Chunk, error) {
	readers := make([]io.Reader, len(parts))
	for i, p := range parts {
		readers[i] = bytes.NewReader(p)
	}
	var chunks []Chunk
	if err := ComputeChunks(params, io.MultiReader(readers...), func(ch Chunk, _ []byte) error {
		chunks = append(chunks, ch)
		return nil
	}); err != nil {
		return nil, err
	}
	return chunks, nil
}

// CompressedSizer measures the zlib-compressed (default level) size of byte slices.  It reuses
// its compressor, so it is not safe for concurrent use.
type CompressedSizer struct {
	w *zlib.Writer
	n countingWriter
}

// NewCompressedSizer returns a CompressedSizer.
func NewCompressedSizer() *CompressedSizer {
	s := &CompressedSizer{}
	s.w = zlib.NewWriter(&s.n)
	return s
}

// Size returns len(zlib.compress(data)).
func (s *CompressedSizer) Size(data []byte) (int, error) {
	s.n = 0
	s.w.Reset(&s.n)
	if _, err := s.w.Write(data); err != nil {
		return 0, errors.EnsureStack(err)
	}
	if err := s.w.Close(); err != nil {
		return 0, errors.EnsureStack(err)
	}
	return int(s.n), nil
}

var sizers = sync.Pool{
	New: func() any { return NewCompressedSizer() },
}

// CompressedSize returns len(zlib.compress(data)) using a pooled CompressedSizer.  It is safe
// for concurrent use.
func CompressedSize(data []byte) (int, error) {
	s := sizers.Get().(*CompressedSizer)
	defer sizers.Put(s)
	return s.Size(data)
}

type countingWriter int64

func (w *countingWriter) Write(p []byte) (int, error) {
	*w += countingWriter(len(p))
	return len(p), nil
}
