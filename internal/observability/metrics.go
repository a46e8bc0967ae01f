package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hb_bookings_total",
			Help: "Bookings by terminal outcome",
		},
		[]string{"outcome"},
	)

	HoldAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hb_hold_acquire_total",
			Help: "Hold acquisition attempts by result",
		},
		[]string{"result"},
	)

	GatewayRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hb_gateway_retries_total",
			Help: "Retried inventory gateway calls",
		},
	)

	HoldsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hb_holds_swept_total",
			Help: "Holds cleared by the out-of-band sweeper",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hb_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hb_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
