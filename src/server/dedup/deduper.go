// Package dedup runs chunking methods over contents and records the results.
//
// A Deduper handles a single content: it fetches the bytes once, records the content, and runs
// every chunking method that has not yet been applied to it.  A Runner feeds a stream of content
// ids to a pool of workers sharing one Deduper.
package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/softwareheritage/swh-dedup/src/internal/dedupdb"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"github.com/softwareheritage/swh-dedup/src/internal/promutil"
	"github.com/softwareheritage/swh-dedup/src/internal/storage/chunk"
	"github.com/softwareheritage/swh-dedup/src/internal/storage/objstore"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
	"go.uber.org/zap"
)

var (
	// ErrContentNotFound means the object store has no object for the content id.
	ErrContentNotFound = errors.New("content not found")
	// ErrContentTooLarge means the content exceeds the configured maximum size.
	ErrContentTooLarge = errors.New("content too large")
	// ErrHashMismatch means the fetched bytes do not hash to the content id.
	ErrHashMismatch = errors.New("content does not match its id")
	// ErrChunkingFailure is wrapped by the failures of a single chunking method.
	ErrChunkingFailure = chunk.ErrChunkingFailure
	// ErrStoreUnavailable is wrapped by failed reads and writes of the dedup store.
	ErrStoreUnavailable = dedupdb.ErrStoreUnavailable
)

// Store is the part of the dedup store a Deduper needs.
type Store interface {
	UpsertContent(ctx context.Context, c dedupdb.Content) error
	PendingMethods(ctx context.Context, contentID swhhash.ID) ([]dedupdb.ChunkingMethod, error)
	RecordChunking(ctx context.Context, contentID swhhash.ID, methodID int64, duration time.Duration, chunks []chunk.Chunk) (bool, error)
}

// Result describes what Dedup did to one content.
type Result struct {
	ContentID swhhash.ID
	Length    int64
	// Applied are the methods whose chunking this call recorded.
	Applied []int64
	// Duplicate are the methods that were recorded concurrently by another caller.
	Duplicate []int64
	// Failed are the methods that could not chunk the content.
	Failed []int64
}

// Option configures a Deduper.
type Option func(*Deduper)

// WithVerifyHash makes the Deduper check that fetched bytes hash to the content id.
func WithVerifyHash(verify bool) Option {
	return func(d *Deduper) { d.verify = verify }
}

// WithMaxContentSize makes the Deduper refuse contents larger than n bytes.  0 means no limit.
func WithMaxContentSize(n int64) Option {
	return func(d *Deduper) { d.maxSize = n }
}

// WithShuffle replaces the function used to order pending methods.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(d *Deduper) { d.shuffle = shuffle }
}

// Deduper applies the pending chunking methods to contents.  It is safe for concurrent use.
type Deduper struct {
	objs    objstore.Fetcher
	store   Store
	verify  bool
	maxSize int64
	shuffle func(n int, swap func(i, j int))
}

// NewDeduper returns a Deduper reading contents from objs and recording into store.
func NewDeduper(objs objstore.Fetcher, store Store, opts ...Option) *Deduper {
	d := &Deduper{
		objs:    objs,
		store:   store,
		shuffle: rand.Shuffle,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dedup fetches the content once, records it, and applies to it every chunking method that has
// not been applied yet.  A method that fails to chunk the content does not stop the others; a
// store failure abandons the content.
func (d *Deduper) Dedup(ctx context.Context, id swhhash.ID) (_ *Result, retErr error) {
	ctx, end := log.SpanContextL(ctx, "dedup", log.DebugLevel, zap.Stringer("content", id))
	defer end(log.ErrorpL(&retErr, log.InfoLevel))

	data, err := d.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &Result{ContentID: id, Length: int64(len(data))}
	content, err := d.describe(id, data)
	if err != nil {
		return nil, err
	}
	if err := d.store.UpsertContent(ctx, content); err != nil {
		return nil, errors.Wrapf(err, "upsert content %v", id)
	}
	pending, err := d.store.PendingMethods(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "pending methods for %v", id)
	}
	d.shuffle(len(pending), func(i, j int) { pending[i], pending[j] = pending[j], pending[i] })
	for _, m := range pending {
		start := time.Now()
		chunks, err := split(m.Params(), data)
		elapsed := time.Since(start)
		if err != nil {
			log.Info(ctx, "chunking failed", zap.Int64("method", m.ID), zap.String("algo", string(m.Algorithm)), zap.Error(err))
			chunkingsMetric.WithLabelValues(string(m.Algorithm), outcomeFailed).Inc()
			res.Failed = append(res.Failed, m.ID)
			continue
		}
		chunkingDurationMetric.WithLabelValues(string(m.Algorithm)).Observe(elapsed.Seconds())
		recorded, err := d.store.RecordChunking(ctx, id, m.ID, elapsed, chunks)
		if err != nil {
			return res, errors.Wrapf(err, "record chunking of %v by method %d", id, m.ID)
		}
		if !recorded {
			log.Debug(ctx, "chunking already recorded", zap.Int64("method", m.ID))
			chunkingsMetric.WithLabelValues(string(m.Algorithm), outcomeDuplicate).Inc()
			res.Duplicate = append(res.Duplicate, m.ID)
			continue
		}
		chunkingsMetric.WithLabelValues(string(m.Algorithm), outcomeRecorded).Inc()
		res.Applied = append(res.Applied, m.ID)
	}
	return res, nil
}

func (d *Deduper) fetch(ctx context.Context, id swhhash.ID) (_ []byte, retErr error) {
	rc, err := d.objs.Get(ctx, id)
	if err != nil {
		if objstore.IsNotExist(err) {
			return nil, errors.Wrapf(ErrContentNotFound, "content %v", id)
		}
		return nil, errors.Wrapf(err, "fetch content %v", id)
	}
	defer func() {
		if err := rc.Close(); err != nil && retErr == nil {
			retErr = errors.EnsureStack(err)
		}
	}()
	var r io.Reader = &promutil.CountingReader{Reader: rc, Counter: fetchedBytesMetric}
	if d.maxSize > 0 {
		r = io.LimitReader(r, d.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read content %v", id)
	}
	if d.maxSize > 0 && int64(len(data)) > d.maxSize {
		return nil, errors.Wrapf(ErrContentTooLarge, "content %v is larger than %d bytes", id, d.maxSize)
	}
	if d.verify {
		if got := swhhash.Sum(data); got != id {
			return nil, errors.Wrapf(ErrHashMismatch, "content %v hashes to %v", id, got)
		}
	}
	return data, nil
}

// describe computes the content row for data.
func (d *Deduper) describe(id swhhash.ID, data []byte) (dedupdb.Content, error) {
	compressed, err := chunk.CompressedSize(data)
	if err != nil {
		return dedupdb.Content{}, errors.Wrapf(err, "compress content %v", id)
	}
	return dedupdb.Content{
		ID:               id,
		Length:           int64(len(data)),
		CompressedLength: sql.NullInt64{Int64: int64(compressed), Valid: true},
		FileType:         sql.NullString{String: mimetype.Detect(data).String(), Valid: true},
	}, nil
}

// split chunks data, turning every error and panic of the chunker into a chunking failure.
func split(params chunk.Params, data []byte) (_ []chunk.Chunk, retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = errors.Wrapf(ErrChunkingFailure, "chunker panicked: %v", r)
		}
	}()
	chunks, err := chunk.Split(params, data)
	if err != nil {
		if !errors.Is(err, ErrChunkingFailure) {
			err = errors.Wrap(ErrChunkingFailure, err.Error())
		}
		return nil, err
	}
	return chunks, nil
}

// String implements fmt.Stringer.
func (r *Result) String() string {
	return fmt.Sprintf("%v: %d applied, %d duplicate, %d failed", r.ContentID, len(r.Applied), len(r.Duplicate), len(r.Failed))
}
