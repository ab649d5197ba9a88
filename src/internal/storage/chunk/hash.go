package chunk

import (
	"sync"

	"github.com/chmduquesne/rollinghash"
	"github.com/chmduquesne/rollinghash/buzhash64"
	"github.com/chmduquesne/rollinghash/rabinkarp64"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
)

// Generating buzhash tables and finding irreducible polynomials is much more expensive than
// chunking a small object, so both are kept per seed.
var (
	buzTables sync.Map // int64 -> [256]uint64
	rabinPols sync.Map // int64 -> rabinkarp64.Pol
)

func newRollingHash(p Params) (rollinghash.Hash64, error) {
	switch p.Algorithm {
	case Buzhash:
		table, ok := buzTables.Load(p.Seed)
		if !ok {
			table, _ = buzTables.LoadOrStore(p.Seed, buzhash64.GenerateHashes(p.Seed))
		}
		return buzhash64.NewFromUint64Array(table.([256]uint64)), nil
	case Rabin:
		pol, ok := rabinPols.Load(p.prime())
		if !ok {
			generated, err := rabinkarp64.RandomPolynomial(p.prime())
			if err != nil {
				return nil, errors.Wrapf(ErrChunkingFailure, "derive rabin polynomial from %d: %v", p.prime(), err)
			}
			pol, _ = rabinPols.LoadOrStore(p.prime(), generated)
		}
		return rabinkarp64.NewFromPol(pol.(rabinkarp64.Pol)), nil
	default:
		return nil, errors.Wrapf(ErrChunkingFailure, "unknown chunking algorithm %q", p.Algorithm)
	}
}
