package httpx

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/authgate/internal/delivery"
	"github.com/dropDatabas3/authgate/internal/metrics"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/provider"
	"github.com/dropDatabas3/authgate/internal/session"
	"github.com/dropDatabas3/authgate/internal/store"
)

// Handlers conecta drivers, sesión y delivery con la superficie HTTP.
type Handlers struct {
	registry  *provider.Registry
	sessions  session.Manager
	deliverer *delivery.Deliverer
	store     store.Store
}

func NewHandlers(reg *provider.Registry, sm session.Manager, d *delivery.Deliverer, st store.Store) *Handlers {
	return &Handlers{registry: reg, sessions: sm, deliverer: d, store: st}
}

// Login inicia el ciclo de un proveedor: genera el estado del intento y
// redirige al sitio del proveedor.
func (h *Handlers) Login(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		d, ok := h.registry.Get(name)
		if !ok {
			WriteError(w, http.StatusNotFound, "unknown_provider", "no such provider")
			return
		}
		metrics.LoginStarted.WithLabelValues(name).Inc()

		sess, err := h.sessions.Open(r)
		if err != nil {
			logger.From(ctx).Error("session open", logger.Provider(name), logger.Err(err))
			WriteError(w, http.StatusInternalServerError, "session_error", "could not open session")
			return
		}

		redirect, err := d.Login(ctx, r, sess)
		if err != nil {
			// una falla de discovery OpenID vuelve al caller como denial, no
			// como error de servidor
			if errors.Is(err, provider.ErrDiscovery) {
				logger.From(ctx).Info("discovery failed", logger.Provider(name), logger.Err(err))
				if derr := h.deliverer.DeliverError(ctx, w, "discovery_failure", err.Error(), name); derr != nil {
					logger.From(ctx).Error("delivery", logger.Provider(name), logger.Err(derr))
					WriteError(w, http.StatusInternalServerError, "delivery_error", "could not stage result")
				}
				return
			}
			var tpf *provider.ThirdPartyFailure
			if errors.As(err, &tpf) {
				logger.From(ctx).Error("upstream failure at login",
					logger.Provider(name), logger.Op(tpf.Op), logger.Status(tpf.Status), logger.Err(err))
				WriteError(w, http.StatusBadGateway, "third_party_failure", "the provider did not accept the request")
				return
			}
			logger.From(ctx).Error("login", logger.Provider(name), logger.Err(err))
			WriteError(w, http.StatusInternalServerError, "internal_error", "could not start login")
			return
		}

		if err := h.sessions.Save(w, r, sess); err != nil {
			logger.From(ctx).Error("session save", logger.Provider(name), logger.Err(err))
			WriteError(w, http.StatusInternalServerError, "session_error", "could not persist session")
			return
		}
		http.Redirect(w, r, redirect, http.StatusFound)
	}
}

// Callback es el handler terminal: todo resultado (éxito o denial) viaja al
// caller por el mismo mecanismo de delivery; CSRF y fallas upstream son los
// únicos casos que cortan con un error HTTP.
func (h *Handlers) Callback(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		d, ok := h.registry.Get(name)
		if !ok {
			WriteError(w, http.StatusNotFound, "unknown_provider", "no such provider")
			return
		}

		sess, err := h.sessions.Open(r)
		if err != nil {
			logger.From(ctx).Error("session open", logger.Provider(name), logger.Err(err))
			WriteError(w, http.StatusInternalServerError, "session_error", "could not open session")
			return
		}

		out, err := d.Callback(ctx, r, sess)
		// el estado consumido se persiste aunque el callback haya fallado
		if serr := h.sessions.Save(w, r, sess); serr != nil {
			logger.From(ctx).Error("session save", logger.Provider(name), logger.Err(serr))
		}

		if err != nil {
			switch {
			case errors.Is(err, provider.ErrCSRF):
				metrics.CallbackResult.WithLabelValues(name, "csrf").Inc()
				logger.From(ctx).Warn("csrf mismatch", logger.Provider(name))
				WriteError(w, http.StatusForbidden, "csrf_failure", "state mismatch or missing")
			default:
				var tpf *provider.ThirdPartyFailure
				if errors.As(err, &tpf) {
					metrics.CallbackResult.WithLabelValues(name, "upstream_error").Inc()
					logger.From(ctx).Error("upstream failure",
						logger.Provider(name), logger.Op(tpf.Op), logger.Status(tpf.Status), logger.Err(err))
					WriteError(w, http.StatusBadGateway, "third_party_failure", "the provider returned an error")
					return
				}
				metrics.CallbackResult.WithLabelValues(name, "error").Inc()
				logger.From(ctx).Error("callback", logger.Provider(name), logger.Err(err))
				WriteError(w, http.StatusInternalServerError, "internal_error", "callback processing failed")
			}
			return
		}

		outcome := "complete"
		if out.Denied != nil {
			outcome = "denied"
		}
		metrics.CallbackResult.WithLabelValues(name, outcome).Inc()
		logger.From(ctx).Info("callback terminal",
			logger.Provider(name), logger.Outcome(outcome), logger.Layer("handler"))

		if err := h.deliverer.Deliver(ctx, w, out); err != nil {
			logger.From(ctx).Error("delivery", logger.Provider(name), logger.Err(err))
			WriteError(w, http.StatusInternalServerError, "delivery_error", "could not stage result")
		}
	}
}

// AuthInfo intercambia un delivery token por el payload almacenado.
func (h *Handlers) AuthInfo(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		WriteError(w, http.StatusBadRequest, "missing_token", "token query parameter is required")
		return
	}
	if f := r.URL.Query().Get("format"); f != "" && f != "json" {
		WriteError(w, http.StatusBadRequest, "unsupported_format", "only format=json is supported")
		return
	}

	body, err := h.deliverer.Fetch(r.Context(), tok)
	if err != nil {
		if store.IsNotFound(err) {
			WriteError(w, http.StatusNotFound, "unknown_token", "token unknown or expired")
			return
		}
		logger.From(r.Context()).Error("auth_info fetch", logger.Err(err))
		WriteError(w, http.StatusInternalServerError, "store_error", "could not read payload")
		return
	}

	// el payload guardado ya es JSON; se devuelve tal cual
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Healthz responde vivo sin tocar dependencias.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz verifica el KV store.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
