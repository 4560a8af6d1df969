package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/profile"
	"github.com/dropDatabas3/authgate/internal/session"
	"github.com/dropDatabas3/authgate/internal/token"
)

// OAuth2Endpoints parameterizes the generic OAuth2 driver.
type OAuth2Endpoints struct {
	AuthURL    string
	TokenURL   string
	ProfileURL string
}

// TokenResponse is the parsed result of the authorization-code exchange.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
}

// OAuth2Driver is the generic authorization-code state machine. Provider
// instances supply endpoints, a normalizer, and optionally a custom profile
// fetcher or extra authorize parameters.
type OAuth2Driver struct {
	name      string
	settings  Settings
	endpoints OAuth2Endpoints

	// authParams are provider-specific extras appended to the authorize URL.
	authParams url.Values

	// beforeRedirect lets an instance stash extra attempt state (OIDC nonce)
	// and amend the authorize params.
	beforeRedirect func(sess session.Session, auth url.Values) error

	// fetchProfile retrieves the raw profile once a token is held. Nil means
	// GET ProfileURL with a Bearer header.
	fetchProfile func(ctx context.Context, d *OAuth2Driver, sess session.Session, tok *TokenResponse) (RawProfile, error)

	normalize func(raw RawProfile) *profile.Profile

	http *http.Client
}

// NewOAuth2 builds a generic OAuth2 driver instance.
func NewOAuth2(name string, s Settings, e OAuth2Endpoints, normalize func(RawProfile) *profile.Profile) (*OAuth2Driver, error) {
	if err := requireOAuthSettings(name, s); err != nil {
		return nil, err
	}
	return &OAuth2Driver{
		name:      name,
		settings:  s,
		endpoints: e,
		normalize: normalize,
		http:      newHTTPClient(),
	}, nil
}

func (d *OAuth2Driver) Name() string { return d.name }
func (d *OAuth2Driver) Type() Type   { return TypeOAuth2 }

func (d *OAuth2Driver) stateKey() string { return "oauth2:state:" + d.name }

// Login generates the CSRF state, stores it in the session, and builds the
// provider authorization URL.
func (d *OAuth2Driver) Login(ctx context.Context, r *http.Request, sess session.Session) (string, error) {
	state, err := token.NewState()
	if err != nil {
		return "", err
	}
	sess.Set(d.stateKey(), state)

	auth := url.Values{}
	auth.Set("client_id", d.settings.Key)
	auth.Set("redirect_uri", d.settings.CallbackURL)
	auth.Set("response_type", "code")
	auth.Set("state", state)
	if d.settings.Scope != "" {
		auth.Set("scope", d.settings.Scope)
	}
	for k, vs := range d.authParams {
		for _, v := range vs {
			auth.Set(k, v)
		}
	}
	if d.beforeRedirect != nil {
		if err := d.beforeRedirect(sess, auth); err != nil {
			return "", err
		}
	}

	logger.From(ctx).Debug("authorization redirect built",
		logger.Provider(d.name), logger.Layer("driver"))
	return URLWithQuery(d.endpoints.AuthURL, auth), nil
}

// Callback validates the callback, exchanges the code, fetches the profile,
// and returns the terminal outcome.
//
// Ordering: an unambiguous provider denial (explicit error/denied parameter)
// wins; otherwise CSRF state is validated before any network call is made.
func (d *OAuth2Driver) Callback(ctx context.Context, r *http.Request, sess session.Session) (*Outcome, error) {
	q := r.URL.Query()

	if reason := firstNonEmpty(q.Get("error"), q.Get("denied")); reason != "" {
		return d.denied(reason, q.Get("error_description")), nil
	}

	stored, ok := sess.Get(d.stateKey())
	sess.Delete(d.stateKey()) // consumed on first callback
	if !ok || stored == "" || q.Get("state") != stored {
		return nil, ErrCSRF
	}

	code := q.Get("code")
	if code == "" {
		return d.denied("no_code", "no authorization code returned"), nil
	}

	tok, err := d.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var raw RawProfile
	if d.fetchProfile != nil {
		raw, err = d.fetchProfile(ctx, d, sess, tok)
	} else {
		raw, err = d.getJSON(ctx, d.endpoints.ProfileURL, tok.AccessToken, "profile")
	}
	if err != nil {
		return nil, err
	}

	return &Outcome{Complete: &Complete{
		Profile: d.normalize(raw),
		Credentials: Credentials{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresIn:    tok.ExpiresIn,
		},
		Provider:     d.name,
		ProviderType: TypeOAuth2,
	}}, nil
}

// exchange POSTs the authorization code to the token endpoint. Accepts JSON
// or form-encoded bodies (older Facebook responds form-encoded).
func (d *OAuth2Driver) exchange(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", d.settings.Key)
	form.Set("client_secret", d.settings.Secret)
	form.Set("redirect_uri", d.settings.CallbackURL)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequest("POST", d.endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, body, err := doRequest(ctx, d.http, req, d.name, "exchange")
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, &ThirdPartyFailure{Provider: d.name, Op: "exchange", Status: status, Body: string(body)}
	}

	tok, err := parseTokenBody(body)
	if err != nil || tok.AccessToken == "" {
		return nil, &ThirdPartyFailure{Provider: d.name, Op: "exchange", Status: status, Body: string(body), Err: err}
	}
	return tok, nil
}

func parseTokenBody(body []byte) (*TokenResponse, error) {
	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err == nil && tok.AccessToken != "" {
		return &tok, nil
	}
	// form-encoded fallback: access_token=...&expires=...
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	tok = TokenResponse{
		AccessToken:  vals.Get("access_token"),
		RefreshToken: vals.Get("refresh_token"),
	}
	if e := firstNonEmpty(vals.Get("expires_in"), vals.Get("expires")); e != "" {
		tok.ExpiresIn, _ = strconv.Atoi(e)
	}
	return &tok, nil
}

// getJSON fetches a JSON document with optional Bearer auth. op labels the
// metrics/error entry.
func (d *OAuth2Driver) getJSON(ctx context.Context, rawURL, bearer, op string) (RawProfile, error) {
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := doRequest(ctx, d.http, req, d.name, op)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, &ThirdPartyFailure{Provider: d.name, Op: op, Status: status, Body: string(body)}
	}

	var raw RawProfile
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ThirdPartyFailure{Provider: d.name, Op: op, Status: status, Body: string(body), Err: err}
	}
	return raw, nil
}

func (d *OAuth2Driver) denied(reason, desc string) *Outcome {
	return &Outcome{Denied: &Denial{
		Reason:       reason,
		Description:  desc,
		Provider:     d.name,
		ProviderType: TypeOAuth2,
	}}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
