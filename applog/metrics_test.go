package applog

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersWhenRegistererProvided(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg, "test_ns")
	require.NotNil(t, m)

	m.claimsTotal.Inc()
	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)
}

func TestNewMetricsWithoutRegistererStillUsable(t *testing.T) {
	m := newMetrics(nil, "test_ns")
	require.NotPanics(t, func() {
		m.commitsTotal.Inc()
		m.position.Set(42)
	})
}
