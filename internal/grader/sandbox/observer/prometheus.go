package observer

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports compile and run observations as prometheus collectors.
type PrometheusRecorder struct {
	compiles   *prometheus.CounterVec
	compileDur *prometheus.HistogramVec
	runs       *prometheus.CounterVec
	runDur     *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the grader collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "examgrader",
			Subsystem: "sandbox",
			Name:      "compiles_total",
			Help:      "Compile steps by language and result.",
		}, []string{"language", "ok"}),
		compileDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "examgrader",
			Subsystem: "sandbox",
			Name:      "compile_duration_seconds",
			Help:      "Wall time of compile steps.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"language"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "examgrader",
			Subsystem: "sandbox",
			Name:      "runs_total",
			Help:      "Test case runs by language and status.",
		}, []string{"language", "status"}),
		runDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "examgrader",
			Subsystem: "sandbox",
			Name:      "run_duration_seconds",
			Help:      "Wall time of test case runs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"language"}),
	}
	for _, c := range []prometheus.Collector{r.compiles, r.compileDur, r.runs, r.runDur} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64) {
	r.compiles.WithLabelValues(languageID, strconv.FormatBool(ok)).Inc()
	r.compileDur.WithLabelValues(languageID).Observe(float64(timeMs) / 1000)
}

func (r *PrometheusRecorder) ObserveRun(ctx context.Context, languageID string, status string, timeMs int64) {
	r.runs.WithLabelValues(languageID, status).Inc()
	r.runDur.WithLabelValues(languageID).Observe(float64(timeMs) / 1000)
}
