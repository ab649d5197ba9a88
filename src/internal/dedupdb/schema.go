package dedupdb

import (
	"context"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/migrations"
	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
)

// The two dialects differ only in column types and how synthetic keys are generated.
var schemaV0 = map[sqlutil.Dialect][]string{
	sqlutil.DialectPostgres: {
		`CREATE TABLE content (
			id BYTEA PRIMARY KEY,
			length BIGINT NOT NULL,
			compressed_length BIGINT,
			file_type TEXT
		)`,
		`CREATE TABLE chunking_method (
			id SERIAL PRIMARY KEY,
			algo TEXT NOT NULL CHECK (algo IN ('rabin', 'buzhash')),
			min_block_size INTEGER NOT NULL,
			average_block_size INTEGER NOT NULL,
			max_block_size INTEGER NOT NULL,
			window_size INTEGER NOT NULL CHECK (window_size >= 1),
			seed BIGINT,
			prime BIGINT,
			CHECK (0 < min_block_size AND min_block_size <= average_block_size AND average_block_size <= max_block_size)
		)`,
		`CREATE TABLE chunk (
			id BYTEA PRIMARY KEY,
			length INTEGER NOT NULL,
			compressed_length INTEGER
		)`,
		`CREATE TABLE chunked_content (
			id BIGSERIAL PRIMARY KEY,
			content_id BYTEA NOT NULL REFERENCES content (id),
			method_id INTEGER NOT NULL REFERENCES chunking_method (id),
			duration_us BIGINT NOT NULL,
			UNIQUE (content_id, method_id)
		)`,
		`CREATE TABLE chunked_content_chunk (
			chunked_content_id BIGINT NOT NULL REFERENCES chunked_content (id),
			chunk_id BYTEA NOT NULL REFERENCES chunk (id),
			position BIGINT NOT NULL,
			PRIMARY KEY (chunked_content_id, position)
		)`,
	},
	sqlutil.DialectSQLite: {
		`CREATE TABLE content (
			id BLOB PRIMARY KEY,
			length INTEGER NOT NULL,
			compressed_length INTEGER,
			file_type TEXT
		)`,
		`CREATE TABLE chunking_method (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			algo TEXT NOT NULL CHECK (algo IN ('rabin', 'buzhash')),
			min_block_size INTEGER NOT NULL,
			average_block_size INTEGER NOT NULL,
			max_block_size INTEGER NOT NULL,
			window_size INTEGER NOT NULL CHECK (window_size >= 1),
			seed INTEGER,
			prime INTEGER,
			CHECK (0 < min_block_size AND min_block_size <= average_block_size AND average_block_size <= max_block_size)
		)`,
		`CREATE TABLE chunk (
			id BLOB PRIMARY KEY,
			length INTEGER NOT NULL,
			compressed_length INTEGER
		)`,
		`CREATE TABLE chunked_content (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content_id BLOB NOT NULL REFERENCES content (id),
			method_id INTEGER NOT NULL REFERENCES chunking_method (id),
			duration_us INTEGER NOT NULL,
			UNIQUE (content_id, method_id)
		)`,
		`CREATE TABLE chunked_content_chunk (
			chunked_content_id INTEGER NOT NULL REFERENCES chunked_content (id),
			chunk_id BLOB NOT NULL REFERENCES chunk (id),
			position INTEGER NOT NULL,
			PRIMARY KEY (chunked_content_id, position)
		)`,
	},
}

// SetupSchemaV0 creates the dedup tables.
// DO NOT MODIFY THIS FUNCTION: it is a migration step that has already been applied to
// existing databases.  Add a new step instead.
func SetupSchemaV0(ctx context.Context, env migrations.Env) error {
	stmts, ok := schemaV0[env.Dialect]
	if !ok {
		return errors.Errorf("no dedup schema for dialect %v", env.Dialect)
	}
	for _, stmt := range stmts {
		if _, err := env.Tx.ExecContext(ctx, stmt); err != nil {
			return errors.EnsureStack(err)
		}
	}
	return nil
}

// SetupChunkIndexV1 indexes chunk references by chunk, for the per-method statistics.
func SetupChunkIndexV1(ctx context.Context, env migrations.Env) error {
	_, err := env.Tx.ExecContext(ctx, `CREATE INDEX chunked_content_chunk_chunk_id ON chunked_content_chunk (chunk_id)`)
	return errors.EnsureStack(err)
}
