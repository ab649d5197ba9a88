package dedup

import (
	"github.com/softwareheritage/swh-dedup/src/internal/cmdutil"
	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"github.com/softwareheritage/swh-dedup/src/internal/storage/objstore"
)

// Config is the configuration of a dedup process, read from the environment.
type Config struct {
	DBURL          string `env:"DEDUP_DB_URL,default=sqlite:swh-dedup.db"`
	DBMaxOpenConns int    `env:"DEDUP_DB_MAX_OPEN_CONNS,default=10"`
	DBMaxIdleConns int    `env:"DEDUP_DB_MAX_IDLE_CONNS,default=2"`

	Objects objstore.Config

	Workers        int              `env:"DEDUP_WORKERS,default=1"`
	ProgressEvery  int              `env:"DEDUP_PROGRESS_EVERY,default=1000"`
	RecentIDs      int              `env:"DEDUP_RECENT_IDS,default=4096"`
	VerifyHash     bool             `env:"DEDUP_VERIFY_HASH,default=false"`
	WriteRetries   int              `env:"DEDUP_WRITE_RETRIES,default=3"`
	MaxContentSize cmdutil.ByteSize `env:"DEDUP_MAX_CONTENT_SIZE,default=0"`
	MetricsAddr    string           `env:"DEDUP_METRICS_ADDR"`

	Log log.Config
}
