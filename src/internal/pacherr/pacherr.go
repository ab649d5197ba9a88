// Package pacherr holds error types shared by storage layers.
package pacherr

import (
	"fmt"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
)

// ErrNotExist is returned (wrapped) when an object is absent from a store.
type ErrNotExist struct {
	Collection string
	ID         string
}

func (e *ErrNotExist) Error() string {
	return fmt.Sprintf("%s %s not found", e.Collection, e.ID)
}

// NewNotExist returns an error for the absence of id in collection.
func NewNotExist(collection, id string) error {
	return errors.WithStack(&ErrNotExist{Collection: collection, ID: id})
}

// IsNotExist reports whether err, or anything it wraps, is an ErrNotExist.
func IsNotExist(err error) bool {
	var target *ErrNotExist
	return errors.As(err, &target)
}
