// Package metrics exposes Prometheus instrumentation for the tracker
// daemon. Init must be called once at startup; the helpers are safe to
// call before Init, they just do nothing.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "ontime_"

var (
	registerOnce sync.Once

	ticksTotal        *prometheus.CounterVec
	skippedTicksTotal *prometheus.CounterVec
	tickDuration      prometheus.Histogram

	transitionsTotal        *prometheus.CounterVec
	ignoredTransitionsTotal *prometheus.CounterVec

	publishFailuresTotal *prometheus.CounterVec

	rolloversTotal       *prometheus.CounterVec
	prunedIntervalsTotal *prometheus.CounterVec

	deviceOn         *prometheus.GaugeVec
	windowMinutes    *prometheus.GaugeVec
	baselinedWindows *prometheus.GaugeVec
)

// Init registers the daemon's metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		ticksTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ticks_total",
				Help: "Total refresh ticks processed per device",
			},
			[]string{"device"},
		)
		skippedTicksTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "skipped_ticks_total",
				Help: "Total refresh ticks skipped per device",
			},
			[]string{"device"},
		)
		tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "tick_duration_seconds",
			Help:    "Refresh tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		})

		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transitions_total",
				Help: "Total recorded state transitions by device and state",
			},
			[]string{"device", "state"},
		)
		ignoredTransitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ignored_transitions_total",
				Help: "Total reported transitions that did not change state",
			},
			[]string{"device"},
		)

		publishFailuresTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "publish_failures_total",
				Help: "Total failed publishes by device and sink",
			},
			[]string{"device", "sink"},
		)

		rolloversTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "day_rollovers_total",
				Help: "Total midnight rollovers per device",
			},
			[]string{"device"},
		)
		prunedIntervalsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pruned_intervals_total",
				Help: "Total intervals dropped by retention pruning",
			},
			[]string{"device"},
		)

		deviceOn = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "device_on",
				Help: "Whether the device is currently on (1) or off (0)",
			},
			[]string{"device"},
		)
		windowMinutes = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "window_minutes",
				Help: "Accumulated on-time minutes per rolling window",
			},
			[]string{"device", "window"},
		)
		baselinedWindows = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "baselined_windows",
				Help: "Windows still held at their restart baseline value",
			},
			[]string{"device"},
		)

		prometheus.MustRegister(
			ticksTotal,
			skippedTicksTotal,
			tickDuration,
			transitionsTotal,
			ignoredTransitionsTotal,
			publishFailuresTotal,
			rolloversTotal,
			prunedIntervalsTotal,
			deviceOn,
			windowMinutes,
			baselinedWindows,
		)
	})
}

// ObserveTick records one completed refresh tick.
func ObserveTick(device string, duration time.Duration) {
	if ticksTotal != nil {
		ticksTotal.WithLabelValues(device).Inc()
	}
	if tickDuration != nil {
		tickDuration.Observe(duration.Seconds())
	}
}

// IncSkippedTick counts a tick the tracker refused to process.
func IncSkippedTick(device string) {
	if skippedTicksTotal != nil {
		skippedTicksTotal.WithLabelValues(device).Inc()
	}
}

// IncTransition counts a recorded state change.
func IncTransition(device, state string) {
	if transitionsTotal != nil {
		transitionsTotal.WithLabelValues(device, state).Inc()
	}
}

// IncIgnoredTransition counts a report that matched the current state.
func IncIgnoredTransition(device string) {
	if ignoredTransitionsTotal != nil {
		ignoredTransitionsTotal.WithLabelValues(device).Inc()
	}
}

// IncPublishFailure counts a failed publish to the named sink.
func IncPublishFailure(device, sink string) {
	if publishFailuresTotal != nil {
		publishFailuresTotal.WithLabelValues(device, sink).Inc()
	}
}

// AddRollovers counts midnight rollovers, possibly several at once
// after a long gap.
func AddRollovers(device string, count int) {
	if count <= 0 {
		return
	}
	if rolloversTotal != nil {
		rolloversTotal.WithLabelValues(device).Add(float64(count))
	}
}

// AddPrunedIntervals counts intervals removed by retention pruning.
func AddPrunedIntervals(device string, count int) {
	if count <= 0 {
		return
	}
	if prunedIntervalsTotal != nil {
		prunedIntervalsTotal.WithLabelValues(device).Add(float64(count))
	}
}

// SetDeviceOn publishes the current on/off state as a 0/1 gauge.
func SetDeviceOn(device string, on bool) {
	if deviceOn == nil {
		return
	}
	v := 0.0
	if on {
		v = 1.0
	}
	deviceOn.WithLabelValues(device).Set(v)
}

// SetWindowMinutes publishes one rolling window value.
func SetWindowMinutes(device, window string, minutes float64) {
	if windowMinutes != nil {
		windowMinutes.WithLabelValues(device, window).Set(minutes)
	}
}

// SetBaselinedWindows publishes how many windows are still pinned to
// their restart baseline.
func SetBaselinedWindows(device string, count int) {
	if baselinedWindows != nil {
		baselinedWindows.WithLabelValues(device).Set(float64(count))
	}
}
