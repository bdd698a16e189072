package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewRouter(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthzUnhealthy(t *testing.T) {
	srv := httptest.NewServer(NewRouter(func() error { return errors.New("agent stopped") }))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	IncBusFault("agent:event", "panic")

	srv := httptest.NewServer(NewRouter(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stoic_bus_handler_faults_total")
}

func TestIncHelpersLabelOutcome(t *testing.T) {
	before := testutil.ToFloat64(ExecutorNotificationsTotal.WithLabelValues("show_motivational_quote", "failure"))
	IncNotification("show_motivational_quote", errors.New("boom"))
	after := testutil.ToFloat64(ExecutorNotificationsTotal.WithLabelValues("show_motivational_quote", "failure"))
	assert.Equal(t, before+1, after)

	before = testutil.ToFloat64(ListenerSamplesTotal.WithLabelValues("cpu", "ok"))
	IncSample("cpu", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(ListenerSamplesTotal.WithLabelValues("cpu", "ok")))
}
