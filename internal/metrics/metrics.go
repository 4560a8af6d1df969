package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Gateway-level Prometheus metrics. Defined in a standalone package to avoid
// import cycles between the provider drivers and the HTTP packages.

var (
	LoginStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_login_started_total",
		Help: "Login flows initiated, by provider",
	}, []string{"provider"})

	CallbackResult = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authgate_callback_result_total",
		Help: "Terminal callback outcomes (complete, denied, csrf, upstream_error, error), by provider",
	}, []string{"provider", "outcome"})

	UpstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authgate_upstream_request_seconds",
		Help:    "Duración de llamadas HTTP al proveedor upstream",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"provider", "op"})

	DeliveryTokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authgate_delivery_tokens_issued_total",
		Help: "Delivery tokens generated and staged in the KV store",
	})

	StoreErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authgate_store_errors_total",
		Help: "KV store operation failures",
	})
)

// Register registers the gateway metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		LoginStarted,
		CallbackResult,
		UpstreamDuration,
		DeliveryTokensIssued,
		StoreErrors,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
