package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ListingsCreated counts listings posted, by kind (selling/buying)
var ListingsCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tradepost_listings_created_total",
		Help: "Total number of marketplace listings created",
	},
	[]string{"kind"},
)

// OffersResolved counts offer resolutions by outcome (accepted/rejected)
var OffersResolved = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tradepost_offers_resolved_total",
		Help: "Total number of offers resolved by the listing owner",
	},
	[]string{"outcome"},
)

// TradesFinalized counts trade confirmations reaching a terminal state
var TradesFinalized = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tradepost_trades_finalized_total",
		Help: "Total number of trade confirmations completed or cancelled",
	},
	[]string{"status"},
)

// TransitionLatency records latency distribution for marketplace transitions
var TransitionLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "tradepost_transition_latency_seconds",
		Help:    "Latency in seconds of marketplace state transitions",
		Buckets: prometheus.DefBuckets,
	},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradepost_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradepost_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradepost_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(ListingsCreated, OffersResolved, TradesFinalized, TransitionLatency)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
