package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(TokenRefreshTotal.WithLabelValues("success"))
	TokenRefreshTotal.WithLabelValues("success").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(TokenRefreshTotal.WithLabelValues("success")))

	NotificationsUnread.Set(3)
	require.Equal(t, float64(3), testutil.ToFloat64(NotificationsUnread))
}

func TestHandlerExposesAulaMetrics(t *testing.T) {
	RequestReplaysTotal.Inc()

	srv := httptest.NewServer(Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "aula_request_replays_total")
}
