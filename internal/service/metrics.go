package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agencydesk/dispatch/internal/biz/domain"
)

var (
	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_total",
		Help: "Total number of dispatches by outcome and correlation path.",
	}, []string{"outcome", "path"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_duration_seconds",
		Help:    "Duration of send plus attribution.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	correlationPollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_correlation_poll_attempts",
		Help:    "Direct lookups made before correlation finished.",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})

	dispatchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_in_flight",
		Help: "Asynchronous dispatches currently running.",
	})
)

func observeDispatch(result domain.AttributionResult, seconds float64) {
	path := string(result.Path)
	if path == "" {
		path = string(domain.PathNone)
	}
	dispatchTotal.WithLabelValues(string(result.Outcome), path).Inc()
	dispatchDuration.WithLabelValues(string(result.Outcome)).Observe(seconds)
	if result.Outcome != domain.OutcomeSendFailed {
		correlationPollAttempts.Observe(float64(result.PollAttempts))
	}
}
