// Package provider implements the per-provider login/callback protocol
// drivers. Three generic state machines (OAuth1, OAuth2, OpenID) are
// parameterized by endpoint URLs and a profile-normalization callback; each
// configured provider is an instance of one of them.
//
// A driver instance is immutable configuration plus stateless methods; all
// per-attempt state lives in the caller's session bag. The cycle is
// IDLE -> AWAITING_CALLBACK -> TERMINAL(Complete|Denied), with a fresh cycle
// per login call.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/dropDatabas3/authgate/internal/metrics"
	"github.com/dropDatabas3/authgate/internal/profile"
	"github.com/dropDatabas3/authgate/internal/session"
)

// Type identifies the protocol family of a driver.
type Type string

const (
	TypeOAuth1 Type = "oauth1"
	TypeOAuth2 Type = "oauth2"
	TypeOpenID Type = "openid"
)

// Credentials is the durable credential bag attached to a completed
// authentication. Shape depends on the protocol family.
type Credentials struct {
	AccessToken       string `json:"oauthAccessToken,omitempty"`
	AccessTokenSecret string `json:"oauthAccessTokenSecret,omitempty"`
	RefreshToken      string `json:"oauthRefreshToken,omitempty"`
	ExpiresIn         int    `json:"oauthExpiresIn,omitempty"`
}

// Complete is the successful terminal outcome of a callback.
type Complete struct {
	Profile      *profile.Profile
	Credentials  Credentials
	Provider     string
	ProviderType Type
}

// Denial is the declined terminal outcome: the user said no, or the
// provider returned an explicit denial code. A normal result, not an error.
type Denial struct {
	Reason       string
	Description  string
	Provider     string
	ProviderType Type
}

// Outcome is the tagged union returned by Callback. Exactly one of
// Complete or Denied is non-nil.
type Outcome struct {
	Complete *Complete
	Denied   *Denial
}

// Driver is one provider's login/callback state machine.
type Driver interface {
	Name() string
	Type() Type

	// Login builds the provider redirect URL and stashes the attempt state
	// (CSRF state, request token) in the session.
	Login(ctx context.Context, r *http.Request, sess session.Session) (string, error)

	// Callback consumes the provider's response: validates CSRF state,
	// exchanges the authorization artifact, fetches and normalizes the
	// profile. Protocol failures return *ThirdPartyFailure or ErrCSRF;
	// a user denial is an Outcome, not an error.
	Callback(ctx context.Context, r *http.Request, sess session.Session) (*Outcome, error)
}

// Settings is the immutable per-provider configuration bound at startup.
type Settings struct {
	Key         string // consumer key / app id / client id
	Secret      string // consumer secret / app secret / client secret
	Scope       string
	CallbackURL string
}

// RawProfile is the provider's profile payload before normalization.
type RawProfile = map[string]any

// outboundTimeout bounds every call to a provider.
const outboundTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: outboundTimeout}
}

// URLWithQuery appends params to base as a URL-encoded query string,
// merging with any query already on the base URL.
func URLWithQuery(base string, params url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// doRequest performs one upstream call with metrics observation. A transport
// error (timeouts included) maps to *ThirdPartyFailure exactly like a
// non-success status would.
func doRequest(ctx context.Context, client *http.Client, req *http.Request, providerName, op string) (int, []byte, error) {
	start := time.Now()
	resp, err := client.Do(req.WithContext(ctx))
	metrics.UpstreamDuration.WithLabelValues(providerName, op).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, nil, &ThirdPartyFailure{Provider: providerName, Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, &ThirdPartyFailure{Provider: providerName, Op: op, Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, body, nil
}

// asString renders a raw JSON scalar (string or number) as a string. Numeric
// user ids arrive as float64 from encoding/json.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	default:
		return 0
	}
}

// Registry maps provider names to constructed drivers. Built once at
// startup; read-only afterwards.
type Registry struct {
	drivers map[string]Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: map[string]Driver{}}
}

// Register adds a driver. Duplicate names are a configuration error.
func (r *Registry) Register(d Driver) error {
	if _, ok := r.drivers[d.Name()]; ok {
		return fmt.Errorf("provider: duplicate driver %q", d.Name())
	}
	r.drivers[d.Name()] = d
	return nil
}

// Get looks a driver up by name.
func (r *Registry) Get(name string) (Driver, bool) {
	d, ok := r.drivers[name]
	return d, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.drivers))
	for n := range r.drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build constructs the driver for a known provider name. Unknown names and
// missing required settings fail here, at configuration time.
func Build(name string, s Settings) (Driver, error) {
	switch name {
	case "facebook":
		return NewFacebook(s)
	case "google":
		return NewGoogle(s)
	case "github":
		return NewGitHub(s)
	case "linkedin":
		return NewLinkedIn(s)
	case "live":
		return NewLive(s)
	case "twitter":
		return NewTwitter(s)
	case "yahoo":
		return NewYahoo(s)
	case "openid":
		return NewOpenID(s)
	default:
		return nil, fmt.Errorf("provider: unknown provider %q", name)
	}
}

func requireOAuthSettings(name string, s Settings) error {
	if s.Key == "" {
		return fmt.Errorf("provider %s: consumer key is required", name)
	}
	if s.Secret == "" {
		return fmt.Errorf("provider %s: consumer secret is required", name)
	}
	if s.CallbackURL == "" {
		return fmt.Errorf("provider %s: callback url is required", name)
	}
	return nil
}
