package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTurn("registered", "feliz", 20*time.Millisecond)
	c.RecordTurn("registered", "feliz", 10*time.Millisecond)
	c.RecordPersistenceFailure("profile")
	c.RecordRateLimited("chat")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turns.WithLabelValues("registered", "feliz")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.persistFailure.WithLabelValues("profile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited.WithLabelValues("chat")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(http.StatusTooManyRequests)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `lumi_http_status_total{status_code="429"} 1`))
}
