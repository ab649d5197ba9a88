package objstore

import (
	"context"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
)

// Config selects and parameterizes an object store.  URL takes precedence over Root.
type Config struct {
	Root        string `env:"DEDUP_OBJS_ROOT"`
	URL         string `env:"DEDUP_OBJS_URL"`
	Slicing     string `env:"DEDUP_OBJS_SLICING,default=0:2/2:4"`
	Compression string `env:"DEDUP_OBJS_COMPRESSION,default=none"`
}

// Open returns the store described by c.
func Open(ctx context.Context, c Config) (Store, error) {
	slicing, err := ParseSlicing(c.Slicing)
	if err != nil {
		return nil, err
	}
	compression, err := ParseCompression(c.Compression)
	if err != nil {
		return nil, err
	}
	switch {
	case c.URL != "":
		return OpenBucket(ctx, c.URL, slicing, compression)
	case c.Root != "":
		return NewPathSlicing(c.Root, slicing, compression), nil
	default:
		return nil, errors.New("no object store configured: set DEDUP_OBJS_ROOT or DEDUP_OBJS_URL")
	}
}
