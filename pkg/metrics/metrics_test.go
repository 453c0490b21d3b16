package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStage(t *testing.T) {
	before := testutil.CollectAndCount(StageDuration)
	ObserveStage("test_stage", time.Now().Add(-time.Millisecond))
	assert.Equal(t, before+1, testutil.CollectAndCount(StageDuration))
}

func TestGaugesAndCounters(t *testing.T) {
	Entities.WithLabelValues(StageLoad).Set(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(Entities.WithLabelValues(StageLoad)))

	PropagationIterations.Set(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(PropagationIterations))

	before := testutil.ToFloat64(PropagationNotConverged)
	PropagationNotConverged.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PropagationNotConverged))
}
