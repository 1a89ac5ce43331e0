package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestNoopMetrics ensures the no-op recorder accepts every call.
func TestNoopMetrics(t *testing.T) {
	t.Parallel()

	var m Noop

	m.ObserveInstall("full", "success", 1)
	m.IncVerification("hash", "passed")
	m.IncMetadataRestored()
}

// TestPromMetrics verifies counters are labelled and the textfile is written.
func TestPromMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()

	m, err := NewProm("bundle_deployer", reg)
	require.NoError(t, err)

	m.ObserveInstall("diff", "success", 0.5)
	m.ObserveInstall("diff", "failure", 0.1)
	m.IncVerification("hash_only", "passed")
	m.IncMetadataRestored()

	require.InDelta(t, 1, testutil.ToFloat64(m.installs.WithLabelValues("diff", "success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.verifications.WithLabelValues("hash_only", "passed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.metadataRestored), 0)

	// A second registration on the same registry must fail.
	_, err = NewProm("bundle_deployer", reg)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "deployer.prom")
	require.NoError(t, WriteTextfile(path, reg))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "bundle_deployer_installs_total")
}
