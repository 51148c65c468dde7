package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrevorS/geoap"
)

func TestRecorder_ObserveAttempt(t *testing.T) {
	r := NewRecorder("toy")

	r.ObserveAttempt(geoap.Attempt{
		Probe: 1, Phase: geoap.PhaseBootstrap, Preference: -1, Next: -2,
		Quantile: 0.8, Clusters: 650, Budget: 10, Duration: 20 * time.Millisecond,
	})
	r.ObserveAttempt(geoap.Attempt{
		Probe: 2, Phase: geoap.PhaseBootstrap, Preference: -2, Next: -4,
		Quantile: 0.95, Clusters: 3, Degenerate: true, Budget: 10,
	})
	r.ObserveAttempt(geoap.Attempt{
		Probe: 3, Phase: geoap.PhaseExpand, Preference: -4, Next: -8,
		Quantile: 0.95, Clusters: 0, Budget: 9,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.probesTotal.WithLabelValues("bootstrap", "clusters")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.probesTotal.WithLabelValues("bootstrap", "degenerate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.probesTotal.WithLabelValues("expand", "empty")))
	assert.Equal(t, -8.0, testutil.ToFloat64(r.preference))
	assert.Equal(t, 0.95, testutil.ToFloat64(r.quantile))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.clusters))
	assert.Equal(t, 9.0, testutil.ToFloat64(r.budget))
	assert.Equal(t, 1, testutil.CollectAndCount(r.oracleDuration))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder("toy")
	r.ObserveAttempt(geoap.Attempt{Phase: geoap.PhaseBisect, Clusters: 12, Next: -3, Budget: 4})

	path := filepath.Join(t.TempDir(), "geoap.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `geoap_search_probes_total{dataset="toy",phase="bisect",result="clusters"} 1`), text)
	assert.True(t, strings.Contains(text, "geoap_search_retry_budget_remaining"), text)
}
