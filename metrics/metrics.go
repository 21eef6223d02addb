package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RuleValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruleguard_rule_validations_total",
			Help: "Total number of rule payload validations",
		},
		[]string{"result"},
	)

	// RuleValidationFailures labels failures by violated constraint and the
	// top-level field it belongs to ("" for whole-payload violations).
	RuleValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruleguard_rule_validation_failures_total",
			Help: "Total number of rejected rule payloads by constraint kind and field",
		},
		[]string{"kind", "field"},
	)

	RuleUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruleguard_rule_updates_total",
			Help: "Total number of rule update attempts by outcome",
		},
		[]string{"result"},
	)

	AlertAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruleguard_alert_api_requests_total",
			Help: "Total number of alerting API requests by operation and status",
		},
		[]string{"operation", "status"},
	)

	AlertAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ruleguard_alert_api_request_duration_seconds",
			Help:    "Time taken by alerting API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	AlertAPICircuitOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruleguard_alert_api_circuit_open",
			Help: "1 while the alerting API circuit breaker rejects requests",
		},
	)
)
