package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.AccrualsCreated.Add(3)
	m.EntriesPosted.WithLabelValues("payment").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.AccrualsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesPosted.WithLabelValues("payment")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["rentledger_accruals_created_total"])

	// a second set on the same registry would collide
	assert.Panics(t, func() { NewMetricsWithRegistry(reg) })
}
