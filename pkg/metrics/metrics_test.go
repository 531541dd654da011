package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.BlocksMined.Inc()
	m.PeerFetchFailures.Add(2)
	m.RegisterGauge("chain_length", "Blocks in the local chain.",
		func() float64 { return 7 })

	require.Equal(t, 2.0, testutil.ToFloat64(m.PeerFetchFailures))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "powchain_blocks_mined_total 1")
	require.Contains(t, string(body), "powchain_peer_fetch_failures_total 2")
	require.Contains(t, string(body), "powchain_chain_length 7")
}
