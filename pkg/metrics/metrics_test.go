package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewMetricsPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("chairside", "api", reg)

	m.BookingOperations.WithLabelValues("create", "success").Inc()
	m.BookingOperations.WithLabelValues("create", "success").Inc()
	m.SlotConflicts.WithLabelValues("occupied").Inc()

	assert.Equal(t, 2.0, counterValue(t, m.BookingOperations.WithLabelValues("create", "success")))
	assert.Equal(t, 1.0, counterValue(t, m.SlotConflicts.WithLabelValues("occupied")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "chairside_api_booking_operations_total")
}

func TestNewNopIsRepeatable(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop()
		NewNop()
	})
}
