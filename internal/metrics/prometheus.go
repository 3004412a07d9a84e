// SPDX-License-Identifier: EPL-2.0

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ik5/audscrub/internal/scrub"
)

// Metrics contains the Prometheus metrics of a batch run.
type Metrics struct {
	registry *prometheus.Registry

	// Job metrics
	Jobs        *prometheus.CounterVec
	Fallbacks   prometheus.Counter
	Degraded    prometheus.Counter
	JobDuration prometheus.Histogram

	// Capture metrics
	CaptureOverflows prometheus.Counter
	CapturedSeconds  prometheus.Counter
	CaptureBlocks    prometheus.Counter
}

// New creates the metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "audscrub_jobs_total",
			Help: "Total number of finished jobs by final status",
		}, []string{"status"}),
		Fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "audscrub_fallbacks_total",
			Help: "Total number of jobs that used direct conversion",
		}),
		Degraded: factory.NewCounter(prometheus.CounterOpts{
			Name: "audscrub_degraded_total",
			Help: "Total number of jobs whose captured audio was kept after a scrub failure",
		}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audscrub_job_duration_seconds",
			Help:    "Wall time of a job",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		CaptureOverflows: factory.NewCounter(prometheus.CounterOpts{
			Name: "audscrub_capture_overflows_total",
			Help: "Total number of capture blocks that overflowed",
		}),
		CapturedSeconds: factory.NewCounter(prometheus.CounterOpts{
			Name: "audscrub_captured_seconds_total",
			Help: "Total seconds of audio recorded from the loopback device",
		}),
		CaptureBlocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "audscrub_capture_blocks_total",
			Help: "Total number of blocks read from the capture stream",
		}),
	}
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe records a finished job. Capture statistics count only captures
// that succeeded.
func (m *Metrics) Observe(r scrub.Result) {
	m.Jobs.WithLabelValues(string(r.Status)).Inc()
	if r.FallbackUsed {
		m.Fallbacks.Inc()
	}
	if r.Degraded {
		m.Degraded.Inc()
	}
	m.JobDuration.Observe(r.Elapsed.Seconds())

	// A failed capture's partial recording was replaced by direct conversion.
	if r.FallbackUsed || r.CaptureErr != nil {
		return
	}
	m.CaptureOverflows.Add(float64(r.Stats.Overflows))
	m.CaptureBlocks.Add(float64(r.Stats.Blocks + r.Stats.DrainBlocks))
	m.CapturedSeconds.Add(r.Stats.Duration().Seconds())
}

// WriteFile stores the metrics at path in the text exposition format, for
// the node exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
