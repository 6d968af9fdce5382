package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nifty"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// ExplorerRequests counts explorer API calls by chain and outcome.
	ExplorerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "explorer",
			Name:      "requests_total",
			Help:      "Explorer tokennfttx requests by chain and outcome.",
		},
		[]string{"chain", "outcome"},
	)

	// PointerLookups counts tokenURI lookups by chain and outcome.
	PointerLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "pointer_lookups_total",
			Help:      "tokenURI eth_call lookups by chain and outcome.",
		},
		[]string{"chain", "outcome"},
	)

	// MetadataResolutions counts how token metadata was obtained.
	MetadataResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "resolutions_total",
			Help:      "Metadata resolutions by pointer kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// QueryDuration observes full gallery queries.
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gallery",
			Name:      "query_duration_seconds",
			Help:      "Duration of discover + resolve runs.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

// MustRegisterMetrics registers all collectors with the default registry.
// Safe to call more than once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ExplorerRequests, PointerLookups, MetadataResolutions, QueryDuration)
	})
}
