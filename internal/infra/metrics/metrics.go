// Package metrics provides Prometheus instrumentation for the playback engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlaysTotal counts song play attempts by result.
	PlaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadenza_plays_total",
		Help: "Total number of song play attempts by result",
	}, []string{"result"})

	// SourceFallbacksTotal counts candidate URL failures that fell through to
	// the next source.
	SourceFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadenza_source_fallbacks_total",
		Help: "Total number of audio source candidates that failed and fell back",
	})

	// AdPlaysTotal counts ad impressions by outcome.
	AdPlaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadenza_ad_plays_total",
		Help: "Total number of ad impressions by outcome",
	}, []string{"outcome"})

	// SkipsTotal counts skip-to-next actions.
	SkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadenza_skips_total",
		Help: "Total number of skip-to-next actions",
	})

	// SkipLimitHitsTotal counts skips blocked by the daily budget.
	SkipLimitHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cadenza_skip_limit_hits_total",
		Help: "Total number of skips blocked by the daily skip budget",
	})

	// DiscoveryFallbacksTotal counts discovery provider fallthroughs by provider.
	DiscoveryFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cadenza_discovery_fallbacks_total",
		Help: "Total number of discovery providers that failed or returned nothing",
	}, []string{"provider"})
)

// RecordPlay records a song play attempt.
func RecordPlay(result string) {
	PlaysTotal.WithLabelValues(result).Inc()
}

// RecordAdPlay records an ad impression outcome.
func RecordAdPlay(outcome string) {
	AdPlaysTotal.WithLabelValues(outcome).Inc()
}
