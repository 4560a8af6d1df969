// Package httpx es la superficie HTTP del gateway: router chi, middlewares
// (request id, recover, access log) y los handlers de login/callback,
// auth_info y operación.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/authgate/internal/config"
)

// NewRouter arma el router completo a partir de la configuración de
// proveedores: cada uno aporta su par login/process.
func NewRouter(cfg *config.Config, h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID)
	r.Use(WithRecover)
	r.Use(WithLogging)

	for _, name := range cfg.ProviderNames() {
		p := cfg.Providers[name]
		login := h.Login(name)
		// OpenID manda el identificador por POST form
		r.Get(p.LoginPathOr(name), login)
		r.Post(p.LoginPathOr(name), login)
		r.Get(p.CallbackPathOr(name), h.Callback(name))
	}

	r.Get("/auth_info", h.AuthInfo)
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
