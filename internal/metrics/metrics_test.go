package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveQuery("range", "ok", 10*time.Millisecond, 6)
	r.ObserveQuery("range", "ok", 5*time.Millisecond, 6)
	r.ObserveQuery("range", "validation", time.Millisecond, 0)

	require.Equal(t, 2.0, testutil.ToFloat64(r.queries.WithLabelValues("range", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.queries.WithLabelValues("range", "validation")))
	require.Equal(t, 12.0, testutil.ToFloat64(r.rowsScanned.WithLabelValues("range")))
}

func TestRecorder_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveRequest(http.MethodGet, "/data/:filename", http.StatusNotFound, time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("GET", "/data/:filename", "404")))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.ObserveQuery("range", "ok", time.Millisecond, 1)
		r.ObserveRequest("GET", "/", 200, time.Millisecond)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)
	r.ObserveQuery("all", "ok", time.Millisecond, 3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `datamart_queries_total{op="all",outcome="ok"} 1`), body)
	require.True(t, strings.Contains(body, `datamart_rows_scanned_total{op="all"} 3`), body)
}
