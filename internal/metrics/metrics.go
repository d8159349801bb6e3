package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Auth flow metrics
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophauth_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophauth_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gophauth_token_refreshes_total",
			Help: "Total number of refresh token rotations",
		},
		[]string{"result"},
	)

	LogoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gophauth_logouts_total",
			Help: "Total number of logout requests",
		},
	)

	// HTTP metrics
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gophauth_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// Label values for the "result" dimension
const (
	ResultOK   = "ok"
	ResultFail = "fail"
)
