package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes attempt lifecycle counters. A nil *Recorder is valid and records nothing.
type Recorder struct {
	started   prometheus.Counter
	completed *prometheus.CounterVec
	resets    prometheus.Counter
	active    prometheus.Gauge
	score     prometheus.Histogram
}

// NewRecorder registers the quiz attempt collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "attempts_started_total",
			Help:      "Quiz attempts started.",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "attempts_completed_total",
			Help:      "Quiz attempts completed, by completion reason and outcome.",
		}, []string{"reason", "passed"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "attempt_resets_total",
			Help:      "Attempts restarted for a retake.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quiz",
			Name:      "attempts_active",
			Help:      "Attempts currently held in memory.",
		}),
		score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quiz",
			Name:      "attempt_score_percentage",
			Help:      "Final score percentage of completed attempts.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
	}
	reg.MustRegister(r.started, r.completed, r.resets, r.active, r.score)
	return r
}

func (r *Recorder) AttemptStarted() {
	if r == nil {
		return
	}
	r.started.Inc()
	r.active.Inc()
}

func (r *Recorder) AttemptClosed() {
	if r == nil {
		return
	}
	r.active.Dec()
}

func (r *Recorder) AttemptReset() {
	if r == nil {
		return
	}
	r.resets.Inc()
}

// AttemptCompleted records the outcome of one finished attempt.
func (r *Recorder) AttemptCompleted(reason string, percentage int, passed bool) {
	if r == nil {
		return
	}
	r.completed.WithLabelValues(reason, strconv.FormatBool(passed)).Inc()
	r.score.Observe(float64(percentage))
}
