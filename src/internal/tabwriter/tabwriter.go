// Package tabwriter prints aligned tables with a header, for command output.
package tabwriter

import (
	"io"
	"text/tabwriter"

	"github.com/softwareheritage/swh-dedup/src/internal/errors"
)

// Writer is a text/tabwriter.Writer that prints its header first.  Rows are tab-separated and
// end with a newline.
type Writer struct {
	w *tabwriter.Writer
}

// NewWriter returns a Writer that has already written header.
func NewWriter(w io.Writer, header string) *Writer {
	tw := tabwriter.NewWriter(w, 0, 1, 2, ' ', 0)
	tw.Write([]byte(header)) //nolint:errcheck
	return &Writer{w: tw}
}

// Write writes a row.
func (w *Writer) Write(buf []byte) (int, error) {
	n, err := w.w.Write(buf)
	return n, errors.EnsureStack(err)
}

// Flush writes the aligned table.
func (w *Writer) Flush() error {
	return errors.EnsureStack(w.w.Flush())
}
