package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.AttemptStarted()
	r.AttemptStarted()
	r.AttemptCompleted("timeout", 0, false)
	r.AttemptCompleted("answered", 100, true)
	r.AttemptReset()
	r.AttemptClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.started))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resets))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.completed.WithLabelValues("timeout", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.completed.WithLabelValues("answered", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.score))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.AttemptStarted()
		r.AttemptCompleted("answered", 50, false)
		r.AttemptReset()
		r.AttemptClosed()
	})
}
