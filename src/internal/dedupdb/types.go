package dedupdb

import (
	"database/sql"

	"github.com/softwareheritage/swh-dedup/src/internal/storage/chunk"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
)

// Content is a content object as recorded in the dedup database.
type Content struct {
	ID               swhhash.ID     `db:"id"`
	Length           int64          `db:"length"`
	CompressedLength sql.NullInt64  `db:"compressed_length"`
	FileType         sql.NullString `db:"file_type"`
}

// ChunkingMethod is a row of the method catalogue.
type ChunkingMethod struct {
	ID               int64           `db:"id"`
	Algorithm        chunk.Algorithm `db:"algo"`
	MinBlockSize     int             `db:"min_block_size"`
	AverageBlockSize int             `db:"average_block_size"`
	MaxBlockSize     int             `db:"max_block_size"`
	WindowSize       int             `db:"window_size"`
	Seed             sql.NullInt64   `db:"seed"`
	Prime            sql.NullInt64   `db:"prime"`
}

// Params converts the method to chunker parameters.
func (m ChunkingMethod) Params() chunk.Params {
	return chunk.Params{
		Algorithm:        m.Algorithm,
		MinBlockSize:     m.MinBlockSize,
		AverageBlockSize: m.AverageBlockSize,
		MaxBlockSize:     m.MaxBlockSize,
		WindowSize:       m.WindowSize,
		Seed:             m.Seed.Int64,
		Prime:            m.Prime.Int64,
	}
}

// Summary holds the statistics of a dedup database.
type Summary struct {
	Contents               int64   `db:"contents"`
	ContentBytes           int64   `db:"content_bytes"`
	ContentCompressedBytes int64   `db:"content_compressed_bytes"`
	Chunks                 int64   `db:"chunks"`
	ChunkBytes             int64   `db:"chunk_bytes"`
	ChunkCompressedBytes   int64   `db:"chunk_compressed_bytes"`
	AverageChunkSize       float64 `db:"avg_chunk_size"`
	Methods                []MethodSummary
}

// DedupRatio is the size of the distinct chunks relative to the size of the contents.
func (s Summary) DedupRatio() float64 {
	return ratio(s.ChunkBytes, s.ContentBytes)
}

// MethodSummary holds the statistics of one chunking method.
type MethodSummary struct {
	MethodID             int64           `db:"method_id"`
	Algorithm            chunk.Algorithm `db:"algo"`
	Contents             int64           `db:"contents"`
	ContentBytes         int64           `db:"content_bytes"`
	Chunks               int64           `db:"chunks"`
	ChunkBytes           int64           `db:"chunk_bytes"`
	ChunkCompressedBytes int64           `db:"chunk_compressed_bytes"`
	AverageDurationUs    float64         `db:"avg_duration_us"`
}

// DedupRatio is the size of the distinct chunks this method produced relative to the size of
// the contents it chunked.
func (s MethodSummary) DedupRatio() float64 {
	return ratio(s.ChunkBytes, s.ContentBytes)
}

func ratio(a, b int64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
