package chunk

import (
	"math/bits"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
)

// Algorithm selects the rolling hash used to find cut points.
type Algorithm string

const (
	Rabin   Algorithm = "rabin"
	Buzhash Algorithm = "buzhash"
)

// ParseAlgorithm validates a stored algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case Rabin, Buzhash:
		return a, nil
	default:
		return "", errors.Wrapf(ErrChunkingFailure, "unknown chunking algorithm %q", s)
	}
}

// DefaultPrime seeds the Rabin polynomial when a method does not name one.
const DefaultPrime = 3

// Params are the parameters of a chunking method.
type Params struct {
	Algorithm        Algorithm
	MinBlockSize     int
	AverageBlockSize int
	MaxBlockSize     int
	WindowSize       int
	// Seed generates the buzhash byte table.
	Seed int64
	// Prime seeds the search for the Rabin polynomial; 0 means DefaultPrime.
	Prime int64
}

// ErrChunkingFailure is wrapped by every error caused by bad parameters or a failing chunker.
var ErrChunkingFailure = errors.New("chunking failure")

// Validate checks the parameters without looking at any data.
func (p Params) Validate() error {
	if _, err := ParseAlgorithm(string(p.Algorithm)); err != nil {
		return err
	}
	if p.MinBlockSize <= 0 || p.AverageBlockSize <= 0 || p.MaxBlockSize <= 0 {
		return errors.Wrapf(ErrChunkingFailure, "block sizes must be positive (min=%d avg=%d max=%d)",
			p.MinBlockSize, p.AverageBlockSize, p.MaxBlockSize)
	}
	if p.MinBlockSize > p.AverageBlockSize || p.AverageBlockSize > p.MaxBlockSize {
		return errors.Wrapf(ErrChunkingFailure, "want min <= avg <= max, got min=%d avg=%d max=%d",
			p.MinBlockSize, p.AverageBlockSize, p.MaxBlockSize)
	}
	if p.WindowSize < 1 {
		return errors.Wrapf(ErrChunkingFailure, "window size must be at least 1, got %d", p.WindowSize)
	}
	return nil
}

// splitMask has floor(log2(AverageBlockSize)) low bits set.
func (p Params) splitMask() uint64 {
	n := bits.Len(uint(p.AverageBlockSize)) - 1
	return (uint64(1) << uint(n)) - 1
}

func (p Params) prime() int64 {
	if p.Prime == 0 {
		return DefaultPrime
	}
	return p.Prime
}
