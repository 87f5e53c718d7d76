package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumen-io/client/internal/models"
	"github.com/lumen-io/client/internal/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ session.Observer = (*Collector)(nil)

func TestCollector(t *testing.T) {
	c := NewCollector()
	req := models.NewRequestDescriptor(http.MethodGet, "/api/studies", nil)

	c.RefreshStarted()
	assert.Equal(t, float64(1), testutil.ToFloat64(c.inFlight))

	c.WaiterQueued(req)
	c.WaiterQueued(req)
	assert.Equal(t, float64(2), testutil.ToFloat64(c.waiters))

	c.RefreshFinished(nil, 150*time.Millisecond)
	c.WaiterReleased(req, nil)
	c.WaiterReleased(req, nil)

	assert.Equal(t, float64(0), testutil.ToFloat64(c.inFlight))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.waiters))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.queued))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.refreshes.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.released.WithLabelValues("success")))

	c.RefreshStarted()
	c.RefreshFinished(errors.New("expired"), time.Millisecond)
	c.SessionLost(errors.New("expired"))
	c.StaleRetry(req)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.refreshes.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.sessionsLost))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.staleRetries))
	assert.Equal(t, 1, testutil.CollectAndCount(c.refreshDuration))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.RefreshStarted()
	c.RefreshFinished(nil, time.Millisecond)

	server := httptest.NewServer(c.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `lumen_session_refreshes_total{outcome="success"} 1`)
	assert.Contains(t, string(body), "lumen_session_refresh_duration_seconds_count 1")
}
