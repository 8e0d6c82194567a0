package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesPostedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "uniride", Name: "rides_posted_total", Help: "Ride postings by kind"},
		[]string{"kind"},
	)
	JoinsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "uniride", Name: "joins_total", Help: "Successful join requests"})
	PassengerDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "uniride", Name: "passenger_decisions_total", Help: "Accept/reject decisions by action"},
		[]string{"action"},
	)
	RatingsTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "uniride", Name: "ratings_total", Help: "Ratings submitted"})
	QuotaRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "uniride", Name: "quota_rejected_total", Help: "Request postings rejected by the daily quota"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "uniride", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uniride",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
