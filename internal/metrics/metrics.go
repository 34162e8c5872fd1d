// Package metrics holds the prometheus collectors shared by the gateway, the
// aggregation pipeline and the HTTP trigger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audience_pages_fetched_total",
		Help: "Relation pages fetched from the GraphQL API",
	}, []string{"relation"})
	PageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audience_page_errors_total",
		Help: "Relation page requests that failed",
	}, []string{"relation"})
	EarlyStops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audience_early_stops_total",
		Help: "Traversals ended by the out-of-window heuristic",
	}, []string{"relation"})
	ProfileLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audience_profile_lookups_total",
		Help: "Profile lookups by outcome",
	}, []string{"result"})
	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "audience_run_duration_seconds",
		Help:    "Wall time of one aggregation run",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audience_runs_total",
		Help: "Aggregation runs by outcome",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		PagesFetched,
		PageErrors,
		EarlyStops,
		ProfileLookups,
		RunDuration,
		RunsTotal,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
