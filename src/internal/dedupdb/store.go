// Package dedupdb records contents, chunking methods and the chunks each method produced.
//
// The same schema is served from postgres or SQLite.  Every query is written with '?'
// placeholders and rebound for the connection's driver.
package dedupdb

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/softwareheritage/swh-dedup/src/internal/dbutil"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
	"github.com/softwareheritage/swh-dedup/src/internal/storage/chunk"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
)

// ErrStoreUnavailable is matched by every error the store returns when the database could not
// serve a request.
var ErrStoreUnavailable = errors.New("dedup store unavailable")

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.op, ErrStoreUnavailable, e.err)
}

func (e *storeError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.err}
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&storeError{op: op, err: err})
}

// errAlreadyRecorded rolls back a RecordChunking transaction that lost the race for its
// (content, method) pair.
var errAlreadyRecorded = errors.New("chunking already recorded")

const defaultBatchSize = 500

// Store is the dedup database.  It is safe for concurrent use.
type Store struct {
	db        *sqlutil.DB
	batchSize int
	retries   uint64
}

// Option configures a Store.
type Option func(*Store)

// WithBatchSize sets how many rows a single INSERT statement carries.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithWriteRetries sets how many times a write transaction that failed with a transient error
// is retried.
func WithWriteRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.retries = uint64(n)
		}
	}
}

// NewStore returns a Store over db.  The schema must already be in place.
func NewStore(db *sqlutil.DB, opts ...Option) *Store {
	s := &Store{db: db, batchSize: defaultBatchSize, retries: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database.
func (s *Store) DB() *sqlutil.DB {
	return s.db
}

func (s *Store) withTx(ctx context.Context, cb func(ctx context.Context, tx *sqlutil.Tx) error, opts ...dbutil.WithTxOption) error {
	opts = append([]dbutil.WithTxOption{
		dbutil.WithBackOff(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.retries)),
	}, opts...)
	return dbutil.WithTx(ctx, s.db, cb, opts...)
}

// UpsertContent records c unless a content with the same id is already recorded.
func (s *Store) UpsertContent(ctx context.Context, c Content) error {
	return unavailable("upsert content", s.withTx(ctx, func(ctx context.Context, tx *sqlutil.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO content (id, length, compressed_length, file_type)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING
		`), c.ID, c.Length, c.CompressedLength, c.FileType)
		return errors.EnsureStack(err)
	}))
}

// GetContent returns the content with the given id, or sql.ErrNoRows.
func (s *Store) GetContent(ctx context.Context, id swhhash.ID) (*Content, error) {
	c := &Content{}
	err := sqlx.GetContext(ctx, s.db, c, s.db.Rebind(`
		SELECT id, length, compressed_length, file_type FROM content WHERE id = ?
	`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.EnsureStack(err)
		}
		return nil, unavailable("get content", err)
	}
	return c, nil
}

const methodColumns = `m.id, m.algo, m.min_block_size, m.average_block_size, m.max_block_size, m.window_size, m.seed, m.prime`

// PendingMethods returns, in a single query, the methods that have not yet chunked the content.
// The result is ordered by method id.
func (s *Store) PendingMethods(ctx context.Context, contentID swhhash.ID) ([]ChunkingMethod, error) {
	var ms []ChunkingMethod
	err := sqlx.SelectContext(ctx, s.db, &ms, s.db.Rebind(`
		SELECT `+methodColumns+`
		FROM chunking_method m
		WHERE NOT EXISTS (
			SELECT 1 FROM chunked_content cc
			WHERE cc.content_id = ? AND cc.method_id = m.id
		)
		ORDER BY m.id
	`), contentID)
	if err != nil {
		return nil, unavailable("pending methods", err)
	}
	return ms, nil
}

// Methods lists the method catalogue ordered by id.
func (s *Store) Methods(ctx context.Context) ([]ChunkingMethod, error) {
	var ms []ChunkingMethod
	if err := sqlx.SelectContext(ctx, s.db, &ms, `SELECT `+methodColumns+` FROM chunking_method m ORDER BY m.id`); err != nil {
		return nil, unavailable("list methods", err)
	}
	return ms, nil
}

// AddMethod adds m to the catalogue and returns its id.  m.ID is ignored.
func (s *Store) AddMethod(ctx context.Context, m ChunkingMethod) (int64, error) {
	if err := m.Params().Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.withTx(ctx, func(ctx context.Context, tx *sqlutil.Tx) error {
		return errors.EnsureStack(tx.GetContext(ctx, &id, tx.Rebind(`
			INSERT INTO chunking_method (algo, min_block_size, average_block_size, max_block_size, window_size, seed, prime)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`), m.Algorithm, m.MinBlockSize, m.AverageBlockSize, m.MaxBlockSize, m.WindowSize, m.Seed, m.Prime))
	})
	if err != nil {
		return 0, unavailable("add method", err)
	}
	return id, nil
}

// RecordChunking atomically records that method chunked content into chunks, which took
// duration.  Chunks already known are reused.  If the pair was already recorded, by this or a
// concurrent caller, nothing is written and it returns false.
func (s *Store) RecordChunking(ctx context.Context, contentID swhhash.ID, methodID int64, duration time.Duration, chunks []chunk.Chunk) (bool, error) {
	err := s.withTx(ctx, func(ctx context.Context, tx *sqlutil.Tx) error {
		var ccID int64
		if err := tx.GetContext(ctx, &ccID, tx.Rebind(`
			INSERT INTO chunked_content (content_id, method_id, duration_us)
			VALUES (?, ?, ?)
			ON CONFLICT (content_id, method_id) DO NOTHING
			RETURNING id
		`), contentID, methodID, duration.Microseconds()); err != nil {
			if errors.Is(err, sql.ErrNoRows) || dbutil.IsUniqueViolation(err) {
				return errAlreadyRecorded
			}
			return errors.EnsureStack(err)
		}
		if err := s.insertChunks(ctx, tx, chunks); err != nil {
			return err
		}
		if err := s.insertMapping(ctx, tx, ccID, chunks); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyRecorded) {
			return false, nil
		}
		return false, unavailable("record chunking", err)
	}
	return true, nil
}

// insertChunks inserts the distinct chunks in id order, so that concurrent writers lock
// them in the same order.
func (s *Store) insertChunks(ctx context.Context, tx *sqlutil.Tx, chunks []chunk.Chunk) error {
	seen := make(map[swhhash.ID]struct{}, len(chunks))
	var distinct []chunk.Chunk
	for _, ch := range chunks {
		if _, ok := seen[ch.ID]; ok {
			continue
		}
		seen[ch.ID] = struct{}{}
		distinct = append(distinct, ch)
	}
	sort.Slice(distinct, func(i, j int) bool {
		return bytes.Compare(distinct[i].ID[:], distinct[j].ID[:]) < 0
	})
	return s.insertBatched(ctx, tx,
		`INSERT INTO chunk (id, length, compressed_length) VALUES `,
		` ON CONFLICT (id) DO NOTHING`,
		3, len(distinct), func(i int) []any {
			ch := distinct[i]
			return []any{ch.ID, ch.Length, ch.CompressedLength}
		})
}

func (s *Store) insertMapping(ctx context.Context, tx *sqlutil.Tx, ccID int64, chunks []chunk.Chunk) error {
	return s.insertBatched(ctx, tx,
		`INSERT INTO chunked_content_chunk (chunked_content_id, chunk_id, position) VALUES `,
		``,
		3, len(chunks), func(i int) []any {
			return []any{ccID, chunks[i].ID, chunks[i].Position}
		})
}

func (s *Store) insertBatched(ctx context.Context, tx *sqlutil.Tx, prefix, suffix string, cols, n int, row func(i int) []any) error {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	for start := 0; start < n; start += s.batchSize {
		end := start + s.batchSize
		if end > n {
			end = n
		}
		var q strings.Builder
		q.WriteString(prefix)
		args := make([]any, 0, (end-start)*cols)
		for i := start; i < end; i++ {
			if i > start {
				q.WriteString(", ")
			}
			q.WriteString(tuple)
			args = append(args, row(i)...)
		}
		q.WriteString(suffix)
		if _, err := tx.ExecContext(ctx, tx.Rebind(q.String()), args...); err != nil {
			return errors.EnsureStack(err)
		}
	}
	return nil
}

type chunkRow struct {
	ID               swhhash.ID    `db:"id"`
	Position         int64         `db:"position"`
	Length           int           `db:"length"`
	CompressedLength sql.NullInt64 `db:"compressed_length"`
}

// ChunksOf returns the chunks method produced for content, ordered by position.  It returns nil
// if the pair has not been recorded.
func (s *Store) ChunksOf(ctx context.Context, contentID swhhash.ID, methodID int64) ([]chunk.Chunk, error) {
	var rows []chunkRow
	err := sqlx.SelectContext(ctx, s.db, &rows, s.db.Rebind(`
		SELECT ccc.chunk_id AS id, ccc.position, ch.length, ch.compressed_length
		FROM chunked_content cc
		JOIN chunked_content_chunk ccc ON ccc.chunked_content_id = cc.id
		JOIN chunk ch ON ch.id = ccc.chunk_id
		WHERE cc.content_id = ? AND cc.method_id = ?
		ORDER BY ccc.position
	`), contentID, methodID)
	if err != nil {
		return nil, unavailable("list chunks", err)
	}
	var chunks []chunk.Chunk
	for _, r := range rows {
		chunks = append(chunks, chunk.Chunk{
			ID:               r.ID,
			Position:         r.Position,
			Length:           r.Length,
			CompressedLength: int(r.CompressedLength.Int64),
		})
	}
	return chunks, nil
}

// Summary computes the statistics of the whole database and of every method.
func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	err := s.withTx(ctx, func(ctx context.Context, tx *sqlutil.Tx) error {
		if err := tx.GetContext(ctx, sum, `
			SELECT
				(SELECT count(*) FROM content) AS contents,
				(SELECT CAST(COALESCE(sum(length), 0) AS BIGINT) FROM content) AS content_bytes,
				(SELECT CAST(COALESCE(sum(compressed_length), 0) AS BIGINT) FROM content) AS content_compressed_bytes,
				(SELECT count(*) FROM chunk) AS chunks,
				(SELECT CAST(COALESCE(sum(length), 0) AS BIGINT) FROM chunk) AS chunk_bytes,
				(SELECT CAST(COALESCE(sum(compressed_length), 0) AS BIGINT) FROM chunk) AS chunk_compressed_bytes,
				(SELECT CAST(COALESCE(avg(length), 0) AS DOUBLE PRECISION) FROM chunk) AS avg_chunk_size
		`); err != nil {
			return errors.EnsureStack(err)
		}
		sum.Methods = nil
		return errors.EnsureStack(tx.SelectContext(ctx, &sum.Methods, `
			SELECT
				m.id AS method_id,
				m.algo,
				(SELECT count(*) FROM chunked_content cc WHERE cc.method_id = m.id) AS contents,
				(SELECT CAST(COALESCE(sum(c.length), 0) AS BIGINT)
					FROM chunked_content cc JOIN content c ON c.id = cc.content_id
					WHERE cc.method_id = m.id) AS content_bytes,
				(SELECT count(*) FROM chunk ch WHERE ch.id IN (
					SELECT ccc.chunk_id FROM chunked_content cc
					JOIN chunked_content_chunk ccc ON ccc.chunked_content_id = cc.id
					WHERE cc.method_id = m.id)) AS chunks,
				(SELECT CAST(COALESCE(sum(ch.length), 0) AS BIGINT) FROM chunk ch WHERE ch.id IN (
					SELECT ccc.chunk_id FROM chunked_content cc
					JOIN chunked_content_chunk ccc ON ccc.chunked_content_id = cc.id
					WHERE cc.method_id = m.id)) AS chunk_bytes,
				(SELECT CAST(COALESCE(sum(ch.compressed_length), 0) AS BIGINT) FROM chunk ch WHERE ch.id IN (
					SELECT ccc.chunk_id FROM chunked_content cc
					JOIN chunked_content_chunk ccc ON ccc.chunked_content_id = cc.id
					WHERE cc.method_id = m.id)) AS chunk_compressed_bytes,
				(SELECT CAST(COALESCE(avg(cc.duration_us), 0) AS DOUBLE PRECISION)
					FROM chunked_content cc WHERE cc.method_id = m.id) AS avg_duration_us
			FROM chunking_method m
			ORDER BY m.id
		`))
	})
	if err != nil {
		return nil, unavailable("summary", err)
	}
	return sum, nil
}
