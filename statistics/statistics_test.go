package statistics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Init()

	Set("solutions", 2)
	Change("solutions", 3)
	Change("backtracks", 7)

	assert.Equal(t, 5, Get("solutions"))
	assert.Equal(t, 7, Get("backtracks"))
	assert.Equal(t, float64(5), testutil.ToFloat64(gauge.WithLabelValues("solutions")))
	assert.Equal(t, "Statistics results are:\nNumber of backtracks is 7\nNumber of solutions is 5\n", Display())

	Init()
	assert.Empty(t, Snapshot())
}
