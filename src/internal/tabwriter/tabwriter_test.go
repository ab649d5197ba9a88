package tabwriter

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/softwareheritage/swh-dedup/src/internal/require"
)

func TestWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf, "ID\tNAME\n")
	fmt.Fprintf(w, "1\trabin\n")
	fmt.Fprintf(w, "22\tbuzhash\n")
	require.NoError(t, w.Flush())
	require.Equal(t, "ID  NAME\n1   rabin\n22  buzhash\n", buf.String())
}
