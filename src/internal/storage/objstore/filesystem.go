package objstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"github.com/softwareheritage/swh-dedup/src/internal/pacherr"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
	"go.uber.org/zap"
)

var _ Store = &PathSlicing{}

// PathSlicing is an object store on a local directory tree.
type PathSlicing struct {
	root        string
	slicing     Slicing
	compression Compression
	initOnce    sync.Once
	initErr     error
}

// NewPathSlicing returns a store rooted at root.  The directory must exist for reads; Put
// creates what it needs.
func NewPathSlicing(root string, slicing Slicing, compression Compression) *PathSlicing {
	return &PathSlicing{root: root, slicing: slicing, compression: compression}
}

func (s *PathSlicing) pathFor(id swhhash.ID) string {
	return filepath.Join(s.root, filepath.FromSlash(s.slicing.Path(id)))
}

// Get implements Fetcher.
func (s *PathSlicing) Get(ctx context.Context, id swhhash.ID) (io.ReadCloser, error) {
	f, err := os.Open(s.pathFor(id))
	if err != nil {
		return nil, s.transformError(err, id)
	}
	log.Debug(ctx, "opened object", zap.Stringer("id", id), zap.String("path", f.Name()))
	rc, err := decompress(s.compression, f)
	if err != nil {
		s.closeFile(ctx, &err, f)
		return nil, errors.Wrapf(err, "open %s", id)
	}
	return rc, nil
}

// Exists implements Store.
func (s *PathSlicing) Exists(ctx context.Context, id swhhash.ID) (bool, error) {
	if _, err := os.Stat(s.pathFor(id)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, s.transformError(err, id)
	}
	return true, nil
}

// Put writes data under id, compressed.  The object appears atomically: it is written to a
// staging directory and renamed into place.
func (s *PathSlicing) Put(ctx context.Context, id swhhash.ID, data []byte) (retErr error) {
	if err := s.ensureInit(ctx); err != nil {
		return err
	}
	final := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return errors.EnsureStack(err)
	}
	f, err := os.CreateTemp(filepath.Join(s.root, "staging"), id.HexString()+"-*")
	if err != nil {
		return errors.EnsureStack(err)
	}
	defer s.cleanupFile(ctx, &retErr, f.Name())
	if err := writeCompressed(s.compression, f, data); err != nil {
		s.closeFile(ctx, &retErr, f)
		return err
	}
	if err := f.Close(); err != nil {
		return errors.EnsureStack(err)
	}
	return errors.EnsureStack(os.Rename(f.Name(), final))
}

// Close implements Store.
func (s *PathSlicing) Close() error { return nil }

func writeCompressed(c Compression, w io.Writer, data []byte) error {
	cw, err := compress(c, w)
	if err != nil {
		return err
	}
	if _, err := io.Copy(cw, bytes.NewReader(data)); err != nil {
		return errors.EnsureStack(err)
	}
	return errors.EnsureStack(cw.Close())
}

func (s *PathSlicing) ensureInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = errors.EnsureStack(os.MkdirAll(filepath.Join(s.root, "staging"), 0o755))
		if s.initErr == nil {
			log.Info(ctx, "initialized path-slicing object store", zap.String("root", s.root), zap.Stringer("slicing", s.slicing))
		}
	})
	return s.initErr
}

func (s *PathSlicing) transformError(err error, id swhhash.ID) error {
	if os.IsNotExist(err) || strings.HasSuffix(err.Error(), ": no such file or directory") {
		return pacherr.NewNotExist(s.root, id.HexString())
	}
	return errors.EnsureStack(err)
}

func (s *PathSlicing) closeFile(ctx context.Context, retErr *error, f *os.File) {
	err := f.Close()
	if err != nil && !errors.Is(err, os.ErrClosed) {
		if *retErr == nil {
			*retErr = errors.EnsureStack(err)
		} else {
			log.Error(ctx, "error closing file", zap.Error(err))
		}
	}
}

// cleanupFile removes a staging file that was not renamed into place.
func (s *PathSlicing) cleanupFile(ctx context.Context, retErr *error, p string) {
	err := os.Remove(p)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		if *retErr == nil {
			*retErr = errors.EnsureStack(err)
		} else {
			log.Error(ctx, "error deleting staging file", zap.Error(err))
		}
	}
}
