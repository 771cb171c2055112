package shardroute

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "shardroute"

	engineLabelName  = "engine"
	outcomeLabelName = "outcome"

	// route outcomes
	OutcomePruned      = "pruned"
	OutcomeBroadcast   = "broadcast"
	OutcomeAlwaysFalse = "always_false"
)

var (
	ParseCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "parser",
			Name:      "cache_hits_total",
			Help:      "Number of statements served from the parse cache",
		}, []string{engineLabelName})

	ParseCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "parser",
			Name:      "cache_misses_total",
			Help:      "Number of statements parsed because the cache had no entry",
		}, []string{engineLabelName})

	ParseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "parser",
			Name:      "failures_total",
			Help:      "Number of statements rejected by the parser",
		}, []string{engineLabelName})

	RouteOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "conditions",
			Name:      "outcomes_total",
			Help:      "Sharding condition results by outcome: pruned, broadcast or always_false",
		}, []string{outcomeLabelName})

	registerOnce sync.Once
)

// RegisterMetrics registers the package collectors once.
func RegisterMetrics(registry prometheus.Registerer) {
	registerOnce.Do(func() {
		registry.MustRegister(ParseCacheHits)
		registry.MustRegister(ParseCacheMisses)
		registry.MustRegister(ParseFailures)
		registry.MustRegister(RouteOutcomes)
	})
}
