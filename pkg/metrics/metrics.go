// Package metrics exports codec and session counters to Prometheus.
package metrics

import (
	"github.com/backkem/v2g/pkg/exi"
	"github.com/backkem/v2g/pkg/grammar"
	"github.com/backkem/v2g/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "v2g"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector counts codec operations and session lifecycle events.
// It is an exi.Metrics for codecs and a session.Listener for sessions.
type Collector struct {
	codecOps     *prometheus.CounterVec
	codecBytes   *prometheus.CounterVec
	pauses       prometheus.Counter
	terminations *prometheus.CounterVec
}

// NewCollector creates a collector. Register it with a prometheus.Registerer
// to export it.
func NewCollector() *Collector {
	return &Collector{
		codecOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "codec",
				Name:      "operations_total",
				Help:      "Encode and decode operations by phase and result.",
			},
			[]string{"op", "phase", "result"},
		),
		codecBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "codec",
				Name:      "bytes_total",
				Help:      "Bytes produced by successful encodes and consumed by successful decodes.",
			},
			[]string{"op", "phase"},
		),
		pauses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "session",
				Name:      "pauses_total",
				Help:      "Sessions paused.",
			},
		),
		terminations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "session",
				Name:      "terminations_total",
				Help:      "Sessions terminated by result.",
			},
			[]string{"result"},
		),
	}
}

// Register registers every metric with r.
func (c *Collector) Register(r prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{c.codecOps, c.codecBytes, c.pauses, c.terminations} {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Pauses returns the session pause counter.
func (c *Collector) Pauses() prometheus.Counter {
	return c.pauses
}

// Terminations returns the session termination counters by result.
func (c *Collector) Terminations() *prometheus.CounterVec {
	return c.terminations
}

// CodecOperations returns the codec operation counters.
func (c *Collector) CodecOperations() *prometheus.CounterVec {
	return c.codecOps
}

// ObserveEncode records one encode.
func (c *Collector) ObserveEncode(phase grammar.Phase, size int, err error) {
	c.observe("encode", phase, size, err)
}

// ObserveDecode records one decode.
func (c *Collector) ObserveDecode(phase grammar.Phase, size int, err error) {
	c.observe("decode", phase, size, err)
}

func (c *Collector) observe(op string, phase grammar.Phase, size int, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.codecOps.WithLabelValues(op, phase.String(), result).Inc()
	if err == nil {
		c.codecBytes.WithLabelValues(op, phase.String()).Add(float64(size))
	}
}

// OnPause counts a pause.
func (c *Collector) OnPause(session.PauseEvent) error {
	c.pauses.Inc()
	return nil
}

// OnTerminate counts a termination.
func (c *Collector) OnTerminate(ev session.TerminationEvent) error {
	c.terminations.WithLabelValues(terminationResult(ev.Successful)).Inc()
	return nil
}

func terminationResult(successful bool) string {
	if successful {
		return ResultOK
	}
	return ResultError
}

// Verify Collector implements the observer interfaces.
var (
	_ exi.Metrics      = (*Collector)(nil)
	_ session.Listener = (*Collector)(nil)
)
