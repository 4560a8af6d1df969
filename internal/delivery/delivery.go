// Package delivery implements the result handoff: terminal outcomes are
// serialized, staged in the KV store under a fresh opaque token, and handed
// back to the caller application through an auto-submitting redirect form.
// The companion info lookup exchanges the token for the stored payload.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/dropDatabas3/authgate/internal/metrics"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/provider"
	"github.com/dropDatabas3/authgate/internal/store"
	"github.com/dropDatabas3/authgate/internal/token"
)

// DefaultTTL is how long a staged payload stays readable.
const DefaultTTL = 300 * time.Second

// redirectForm posts the token to the caller endpoint as soon as the page
// loads; the script that hides the form is cosmetic, not a security control.
var redirectForm = template.Must(template.New("redirect").Parse(`<html>
<head><meta charset="utf-8"><title>Redirecting...</title></head>
<body>
<form id="auth" action="{{.Endpoint}}" method="post" accept-charset="UTF-8" enctype="application/x-www-form-urlencoded">
<input type="hidden" name="token" value="{{.Token}}"/>
<input type="submit" value="Continue"/>
</form>
<script>
var f = document.getElementById("auth");
f.style.display = "none";
f.submit();
</script>
</body>
</html>
`))

// Deliverer stages outcomes and renders the redirect form.
type Deliverer struct {
	store    store.Store
	endpoint string
	ttl      time.Duration
}

// New builds a Deliverer posting tokens to the caller-registered endpoint.
// A zero ttl means DefaultTTL.
func New(st store.Store, endpoint string, ttl time.Duration) *Deliverer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Deliverer{store: st, endpoint: endpoint, ttl: ttl}
}

// Deliver serializes the outcome, stages it, and writes the redirect form.
// Success and denial travel the same path; only the payload shape differs.
func (d *Deliverer) Deliver(ctx context.Context, w http.ResponseWriter, out *provider.Outcome) error {
	var payload map[string]any
	switch {
	case out.Complete != nil:
		payload = map[string]any{
			"profile":     out.Complete.Profile.Map(),
			"credentials": out.Complete.Credentials,
			"provider":    out.Complete.Provider,
		}
	case out.Denied != nil:
		payload = denialPayload(out.Denied.Reason, out.Denied.Description, out.Denied.Provider)
	default:
		return fmt.Errorf("delivery: outcome carries neither completion nor denial")
	}
	return d.stage(ctx, w, payload)
}

// DeliverError hands a denial-class error (OpenID discovery failures) back to
// the caller through the same token mechanism.
func (d *Deliverer) DeliverError(ctx context.Context, w http.ResponseWriter, code, description, providerName string) error {
	return d.stage(ctx, w, denialPayload(code, description, providerName))
}

func denialPayload(code, description, providerName string) map[string]any {
	p := map[string]any{"code": code}
	if description != "" {
		p["description"] = description
	}
	if providerName != "" {
		p["provider"] = providerName
	}
	return p
}

func (d *Deliverer) stage(ctx context.Context, w http.ResponseWriter, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("delivery: marshal payload: %w", err)
	}

	tok := token.NewDelivery()
	if err := d.store.Set(ctx, tok, body, d.ttl); err != nil {
		metrics.StoreErrors.Inc()
		return fmt.Errorf("delivery: stage payload: %w", err)
	}
	metrics.DeliveryTokensIssued.Inc()

	logger.From(ctx).Info("resultado staged para entrega",
		logger.Component("delivery"), logger.Int("payload_bytes", len(body)))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return redirectForm.Execute(w, struct {
		Endpoint string
		Token    string
	}{d.endpoint, tok})
}

// Fetch returns the staged payload for a token. store.ErrNotFound passes
// through for unknown or expired tokens; the store keeps the entry readable
// until TTL expiry, single-use enforcement is deliberately not done here.
func (d *Deliverer) Fetch(ctx context.Context, tok string) ([]byte, error) {
	body, err := d.store.Get(ctx, tok)
	if err != nil {
		if !store.IsNotFound(err) {
			metrics.StoreErrors.Inc()
		}
		return nil, err
	}
	return body, nil
}
