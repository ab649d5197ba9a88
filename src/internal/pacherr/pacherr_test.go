package pacherr

import (
	"io"
	"testing"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
)

func TestIsNotExist(t *testing.T) {
	err := NewNotExist("objects", "abcd")
	if !IsNotExist(err) {
		t.Fatal("NewNotExist should satisfy IsNotExist")
	}
	if got, want := err.Error(), "objects abcd not found"; got != want {
		t.Errorf("message: got %q want %q", got, want)
	}
	if !IsNotExist(errors.Wrap(err, "fetch")) {
		t.Error("wrapping should not hide the absence")
	}
	if IsNotExist(io.EOF) {
		t.Error("io.EOF is not an absence")
	}
	if IsNotExist(nil) {
		t.Error("nil is not an absence")
	}
}
