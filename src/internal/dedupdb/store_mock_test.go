package dedupdb

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/pctx"
	"github.com/softwareheritage/swh-dedup/src/internal/require"
	"github.com/softwareheritage/swh-dedup/src/internal/storage/chunk"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
)

func newMockStore(t *testing.T, opts ...Option) (*Store, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return NewStore(db, opts...), mock
}

func testChunks(t *testing.T) []chunk.Chunk {
	chunks, err := chunk.Split(chunk.Params{
		Algorithm:        chunk.Rabin,
		MinBlockSize:     1,
		AverageBlockSize: 2,
		MaxBlockSize:     4,
		WindowSize:       1,
	}, []byte("abcdefgh"))
	require.NoError(t, err)
	return chunks
}

func TestRecordChunkingRollsBackOnChunkFailure(t *testing.T) {
	ctx := pctx.TestContext(t)
	s, mock := newMockStore(t)
	id := swhhash.Sum([]byte("abcdefgh"))

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO chunked_content").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("INSERT INTO chunk ").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	recorded, err := s.RecordChunking(ctx, id, 1, time.Millisecond, testChunks(t))
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorContains(t, err, "connection reset by peer")
	require.False(t, recorded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordChunkingAbsorbsUniqueViolation(t *testing.T) {
	ctx := pctx.TestContext(t)
	s, mock := newMockStore(t)
	id := swhhash.Sum([]byte("abcdefgh"))

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO chunked_content").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	mock.ExpectRollback()

	recorded, err := s.RecordChunking(ctx, id, 1, time.Millisecond, testChunks(t))
	require.NoError(t, err)
	require.False(t, recorded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordChunkingRetriesTransient(t *testing.T) {
	ctx := pctx.TestContext(t)
	s, mock := newMockStore(t, WithWriteRetries(1))
	id := swhhash.Sum([]byte("abcdefgh"))

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO chunked_content").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.DeadlockDetected})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO chunked_content").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec("INSERT INTO chunk ").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("INSERT INTO chunked_content_chunk").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	recorded, err := s.RecordChunking(ctx, id, 1, time.Millisecond, testChunks(t))
	require.NoError(t, err)
	require.True(t, recorded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordChunkingGivesUpAfterRetries(t *testing.T) {
	ctx := pctx.TestContext(t)
	s, mock := newMockStore(t, WithWriteRetries(0))
	id := swhhash.Sum([]byte("abcdefgh"))

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO chunked_content").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mock.ExpectRollback()

	_, err := s.RecordChunking(ctx, id, 1, time.Millisecond, testChunks(t))
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatched(t *testing.T) {
	ctx := pctx.TestContext(t)
	s, mock := newMockStore(t, WithBatchSize(2))
	var chunks []chunk.Chunk
	for i, s := range []string{"a", "b", "c", "d", "e"} {
		chunks = append(chunks, chunk.Chunk{ID: swhhash.Sum([]byte(s)), Position: int64(i), Length: 1})
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO chunked_content_chunk \(chunked_content_id, chunk_id, position\) VALUES \(\?, \?, \?\), \(\?, \?, \?\)$`).
		WithArgs(7, chunks[0].ID, 0, 7, chunks[1].ID, 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO chunked_content_chunk").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`VALUES \(\?, \?, \?\)$`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := s.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, s.insertMapping(ctx, tx, 7, chunks))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreError(t *testing.T) {
	cause := errors.New("boom")
	err := unavailable("op", cause)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "op: dedup store unavailable: boom", err.Error())
	require.Nil(t, unavailable("op", nil))
}
