// Package objstore reads content objects from a content-addressed object store.
//
// Objects are addressed by the SHA-1 of their bytes and laid out by a slicing of the hex id:
// with slicing "0:2/2:4", object 34973274ccef6ab4dfaaf86599792fa9c3fe4689 lives at
// 34/97/34973274ccef6ab4dfaaf86599792fa9c3fe4689 under the store's root.  Objects may be stored
// compressed; readers decompress transparently.  Two backends exist: a directory tree
// (PathSlicing) and any gocloud.dev bucket (Bucket).
package objstore

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/pacherr"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
)

// Fetcher retrieves objects by id.
type Fetcher interface {
	// Get returns the decompressed bytes of the object.  If the object does not exist the error
	// satisfies IsNotExist.
	Get(ctx context.Context, id swhhash.ID) (io.ReadCloser, error)
}

// Store is a Fetcher that can also add objects.  The pipeline never writes; tools and tests do.
type Store interface {
	Fetcher
	Put(ctx context.Context, id swhhash.ID, data []byte) error
	Exists(ctx context.Context, id swhhash.ID) (bool, error)
	Close() error
}

// IsNotExist reports whether err means the object is absent.
func IsNotExist(err error) bool {
	return pacherr.IsNotExist(err)
}

// Slicing maps an id to the directory levels above it.
type Slicing []Slice

// Slice is a [Start:End) range of the hex id.
type Slice struct {
	Start, End int
}

// ParseSlicing parses a spec such as "0:2/2:4".  The empty spec puts every object at the root.
func ParseSlicing(spec string) (Slicing, error) {
	if spec == "" {
		return nil, nil
	}
	var s Slicing
	for _, level := range strings.Split(spec, "/") {
		a, b, ok := strings.Cut(level, ":")
		if !ok {
			return nil, errors.Errorf("invalid slicing %q: level %q is not start:end", spec, level)
		}
		start, err := strconv.Atoi(a)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid slicing %q", spec)
		}
		end, err := strconv.Atoi(b)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid slicing %q", spec)
		}
		if start < 0 || end <= start || end > 2*swhhash.Size {
			return nil, errors.Errorf("invalid slicing %q: bad bounds %d:%d", spec, start, end)
		}
		s = append(s, Slice{Start: start, End: end})
	}
	return s, nil
}

// Path returns the slash-separated path of id relative to the store's root.
func (s Slicing) Path(id swhhash.ID) string {
	h := id.HexString()
	parts := make([]string, 0, len(s)+1)
	for _, sl := range s {
		parts = append(parts, h[sl.Start:sl.End])
	}
	return strings.Join(append(parts, h), "/")
}

func (s Slicing) String() string {
	levels := make([]string, len(s))
	for i, sl := range s {
		levels[i] = strconv.Itoa(sl.Start) + ":" + strconv.Itoa(sl.End)
	}
	return strings.Join(levels, "/")
}

// ErrCorrupt is returned by Check when an object's bytes do not hash to its id.
var ErrCorrupt = errors.New("object is corrupt")

// Check reads the object and verifies that its bytes hash to id.
func Check(ctx context.Context, f Fetcher, id swhhash.ID) (retErr error) {
	rc, err := f.Get(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if err := rc.Close(); retErr == nil {
			retErr = errors.EnsureStack(err)
		}
	}()
	h := swhhash.New()
	if _, err := io.Copy(h, rc); err != nil {
		return errors.EnsureStack(err)
	}
	var got swhhash.ID
	copy(got[:], h.Sum(nil))
	if got != id {
		return errors.Wrapf(ErrCorrupt, "object %v hashes to %v", id, got)
	}
	return nil
}
