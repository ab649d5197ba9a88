package promutil

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/softwareheritage/swh-dedup/src/internal/require"
)

func TestCountingReader(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_bytes_read"})
	r := &CountingReader{Reader: strings.NewReader("hello world"), Counter: c}
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(b))
	require.Equal(t, 11.0, testutil.ToFloat64(c))
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
