package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SchedulerCollector exposes dispatch scheduler metrics, labelled by policy.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	PlanDuration  *prometheus.HistogramVec
	PlanSize      *prometheus.HistogramVec
	Dispatches    *prometheus.CounterVec
	SeekDistance  *prometheus.HistogramVec
	Merges        *prometheus.CounterVec
	WindowDepth   *prometheus.GaugeVec
	OverflowDepth *prometheus.GaugeVec
}

// NewSchedulerCollector registers scheduler metrics against the provided registerer.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	planDuration, err := registerVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seekplan_plan_duration_seconds",
		Help:    "Time spent rebuilding the dispatch plan and cost matrix.",
		Buckets: []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3, 1e-2},
	}, []string{"policy"}), "seekplan_plan_duration_seconds")
	if err != nil {
		return nil, err
	}

	planSize, err := registerVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seekplan_plan_size_requests",
		Help:    "Number of requests covered by each rebuilt plan.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 11),
	}, []string{"policy"}), "seekplan_plan_size_requests")
	if err != nil {
		return nil, err
	}

	dispatches, err := registerVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seekplan_dispatches_total",
		Help: "Requests released to the device.",
	}, []string{"policy"}), "seekplan_dispatches_total")
	if err != nil {
		return nil, err
	}

	seek, err := registerVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seekplan_seek_distance_sectors",
		Help:    "Arm movement in sectors for each dispatched request.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 14),
	}, []string{"policy"}), "seekplan_seek_distance_sectors")
	if err != nil {
		return nil, err
	}

	merges, err := registerVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seekplan_merges_total",
		Help: "Requests folded into a neighbour and dropped from the queue.",
	}, []string{"policy"}), "seekplan_merges_total")
	if err != nil {
		return nil, err
	}

	window, err := registerVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "seekplan_window_requests",
		Help: "Requests currently held in the sorted window.",
	}, []string{"policy"}), "seekplan_window_requests")
	if err != nil {
		return nil, err
	}

	overflow, err := registerVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "seekplan_overflow_requests",
		Help: "Requests waiting in the overflow queue.",
	}, []string{"policy"}), "seekplan_overflow_requests")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:      gatherer,
		PlanDuration:  planDuration,
		PlanSize:      planSize,
		Dispatches:    dispatches,
		SeekDistance:  seek,
		Merges:        merges,
		WindowDepth:   window,
		OverflowDepth: overflow,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SchedulerCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ForPolicy returns an observer whose samples carry the given policy label.
// It is safe to call on a nil collector.
func (c *SchedulerCollector) ForPolicy(policy string) *PolicyObserver {
	return &PolicyObserver{c: c, policy: policy}
}

// PolicyObserver records events for one scheduling policy.
type PolicyObserver struct {
	c      *SchedulerCollector
	policy string
}

func (o *PolicyObserver) enabled() bool {
	return o != nil && o.c != nil
}

func (o *PolicyObserver) ObservePlan(size int, took time.Duration) {
	if !o.enabled() {
		return
	}
	o.c.PlanDuration.WithLabelValues(o.policy).Observe(took.Seconds())
	o.c.PlanSize.WithLabelValues(o.policy).Observe(float64(size))
}

func (o *PolicyObserver) ObserveDispatch(seek uint64) {
	if !o.enabled() {
		return
	}
	o.c.Dispatches.WithLabelValues(o.policy).Inc()
	o.c.SeekDistance.WithLabelValues(o.policy).Observe(float64(seek))
}

func (o *PolicyObserver) ObserveMerge() {
	if !o.enabled() {
		return
	}
	o.c.Merges.WithLabelValues(o.policy).Inc()
}

func (o *PolicyObserver) SetQueueDepth(window, overflow int) {
	if !o.enabled() {
		return
	}
	o.c.WindowDepth.WithLabelValues(o.policy).Set(float64(window))
	o.c.OverflowDepth.WithLabelValues(o.policy).Set(float64(overflow))
}

// registerVec registers a metric vector, reusing an identical collector that
// is already registered under the same name.
func registerVec[T prometheus.Collector](reg prometheus.Registerer, vec T, name string) (T, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return vec, nil
}
