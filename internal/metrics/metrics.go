// Package metrics exposes tracker counters and gauges to Prometheus.
package metrics

import (
	"time"

	"github.com/MeKo-Tech/goklt/internal/klt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the tracker metrics registered on one registerer.
// A nil *Recorder records nothing.
type Recorder struct {
	faults        *prometheus.CounterVec
	spawned       prometheus.Counter
	pruned        prometheus.Counter
	rejected      prometheus.Counter
	active        prometheus.Gauge
	frameDuration prometheus.Histogram
}

// NewRecorder registers the tracker metrics on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	r := &Recorder{
		faults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "klt_track_faults_total",
				Help: "Outcomes of per-feature tracking by fault",
			},
			[]string{"fault"},
		),
		spawned: factory.NewCounter(prometheus.CounterOpts{
			Name: "klt_tracks_spawned_total",
			Help: "Total number of tracks spawned",
		}),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "klt_tracks_pruned_total",
			Help: "Total number of tracks dropped as spatially redundant",
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "klt_tracks_fb_rejected_total",
			Help: "Total number of tracks dropped by the forward-backward check",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "klt_active_tracks",
			Help: "Number of active tracks after the last frame",
		}),
		frameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "klt_frame_duration_seconds",
			Help:    "Time spent processing one frame",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
	// Pre-create every label so zero counts are exported.
	for _, f := range klt.Faults() {
		r.faults.WithLabelValues(f.String())
	}
	return r
}

// RecordFault counts one tracking outcome.
func (r *Recorder) RecordFault(f klt.Fault) {
	if r == nil {
		return
	}
	r.faults.WithLabelValues(f.String()).Inc()
}

// RecordSpawned counts newly spawned tracks.
func (r *Recorder) RecordSpawned(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.spawned.Add(float64(n))
}

// RecordPruned counts tracks removed by the pruner.
func (r *Recorder) RecordPruned(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.pruned.Add(float64(n))
}

// RecordRejected counts tracks dropped by the forward-backward check.
func (r *Recorder) RecordRejected(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rejected.Add(float64(n))
}

// SetActive sets the active track gauge.
func (r *Recorder) SetActive(n int) {
	if r == nil {
		return
	}
	r.active.Set(float64(n))
}

// ObserveFrame records the processing time of one frame.
func (r *Recorder) ObserveFrame(d time.Duration) {
	if r == nil {
		return
	}
	r.frameDuration.Observe(d.Seconds())
}

// WriteTextfile writes every metric gathered by g to path in the
// Prometheus text format, for use with the node exporter textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
