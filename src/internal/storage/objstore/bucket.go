package objstore

import (
	"bytes"
	"context"
	"io"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/pacherr"
	"github.com/softwareheritage/swh-dedup/src/internal/swhhash"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	_ "gocloud.dev/blob/s3blob"   // s3:// buckets
	"gocloud.dev/gcerrors"
)

var _ Store = &Bucket{}

// Bucket is an object store on a gocloud.dev bucket.
type Bucket struct {
	url         string
	bucket      *blob.Bucket
	slicing     Slicing
	compression Compression
}

// OpenBucket opens the bucket at url, e.g. s3://swh-objects?region=eu-west-1 or
// file:///srv/softwareheritage/objects.
func OpenBucket(ctx context.Context, url string, slicing Slicing, compression Compression) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "open bucket %s", url)
	}
	return NewBucket(url, b, slicing, compression), nil
}

// NewBucket wraps an open bucket.  The returned Bucket owns b.
func NewBucket(name string, b *blob.Bucket, slicing Slicing, compression Compression) *Bucket {
	return &Bucket{url: name, bucket: b, slicing: slicing, compression: compression}
}

// Get implements Fetcher.
func (b *Bucket) Get(ctx context.Context, id swhhash.ID) (io.ReadCloser, error) {
	r, err := b.bucket.NewReader(ctx, b.slicing.Path(id), nil)
	if err != nil {
		return nil, b.transformError(err, id)
	}
	rc, err := decompress(b.compression, r)
	if err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "open %s", id)
	}
	return rc, nil
}

// Exists implements Store.
func (b *Bucket) Exists(ctx context.Context, id swhhash.ID) (bool, error) {
	ok, err := b.bucket.Exists(ctx, b.slicing.Path(id))
	return ok, errors.EnsureStack(err)
}

// Put implements Store.
func (b *Bucket) Put(ctx context.Context, id swhhash.ID, data []byte) (retErr error) {
	buf := &bytes.Buffer{}
	if err := writeCompressed(b.compression, buf, data); err != nil {
		return err
	}
	return errors.EnsureStack(b.bucket.WriteAll(ctx, b.slicing.Path(id), buf.Bytes(), nil))
}

// Close releases the bucket.
func (b *Bucket) Close() error {
	return errors.EnsureStack(b.bucket.Close())
}

func (b *Bucket) transformError(err error, id swhhash.ID) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return pacherr.NewNotExist(b.url, id.HexString())
	}
	return errors.EnsureStack(err)
}
