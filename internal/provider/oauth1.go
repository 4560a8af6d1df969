package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/authgate/internal/oauth1"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/profile"
	"github.com/dropDatabas3/authgate/internal/session"
)

// OAuth1Endpoints parameterizes the generic OAuth1 driver.
type OAuth1Endpoints struct {
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
	ProfileURL      string
}

// OAuth1Driver is the generic three-legged OAuth 1.0a state machine. The
// request token stored in the session binds the callback to its originating
// login, playing the role the state parameter plays for OAuth2.
type OAuth1Driver struct {
	name      string
	settings  Settings
	endpoints OAuth1Endpoints
	signer    *oauth1.Signer
	normalize func(raw RawProfile) *profile.Profile
	http      *http.Client
}

// NewOAuth1 builds a generic OAuth1 driver instance.
func NewOAuth1(name string, s Settings, e OAuth1Endpoints, normalize func(RawProfile) *profile.Profile) (*OAuth1Driver, error) {
	if err := requireOAuthSettings(name, s); err != nil {
		return nil, err
	}
	return &OAuth1Driver{
		name:      name,
		settings:  s,
		endpoints: e,
		signer:    oauth1.NewSigner(s.Key, s.Secret),
		normalize: normalize,
		http:      newHTTPClient(),
	}, nil
}

func (d *OAuth1Driver) Name() string { return d.name }
func (d *OAuth1Driver) Type() Type   { return TypeOAuth1 }

func (d *OAuth1Driver) tokenKey() string  { return "oauth1:token:" + d.name }
func (d *OAuth1Driver) secretKey() string { return "oauth1:secret:" + d.name }

// Login synchronously obtains a request token from the provider, stores it
// in the session, and redirects to the authorize URL.
func (d *OAuth1Driver) Login(ctx context.Context, r *http.Request, sess session.Session) (string, error) {
	extra := url.Values{}
	extra.Set("oauth_callback", d.settings.CallbackURL)

	vals, err := d.tokenRequest(ctx, d.endpoints.RequestTokenURL, extra, "", "", "request_token")
	if err != nil {
		return "", err
	}
	reqToken := vals.Get("oauth_token")
	reqSecret := vals.Get("oauth_token_secret")
	if reqToken == "" {
		return "", &ThirdPartyFailure{Provider: d.name, Op: "request_token", Status: 200, Body: vals.Encode()}
	}

	sess.Set(d.tokenKey(), reqToken)
	sess.Set(d.secretKey(), reqSecret)

	logger.From(ctx).Debug("request token obtained",
		logger.Provider(d.name), logger.Layer("driver"))
	return URLWithQuery(d.endpoints.AuthorizeURL, url.Values{"oauth_token": {reqToken}}), nil
}

// Callback checks the denial signal, binds the returned token to the one in
// the session, exchanges it for an access token, and fetches the profile.
func (d *OAuth1Driver) Callback(ctx context.Context, r *http.Request, sess session.Session) (*Outcome, error) {
	q := r.URL.Query()

	if q.Get("denied") != "" {
		return d.denied("denied", "the user denied the request"), nil
	}

	storedToken, okT := sess.Get(d.tokenKey())
	storedSecret, _ := sess.Get(d.secretKey())
	sess.Delete(d.tokenKey())
	sess.Delete(d.secretKey())

	cbToken := q.Get("oauth_token")
	if !okT || storedToken == "" || cbToken == "" || cbToken != storedToken {
		return nil, ErrCSRF
	}

	verifier := q.Get("oauth_verifier")
	if verifier == "" {
		return d.denied("no_verifier", "no oauth verifier returned"), nil
	}

	extra := url.Values{}
	extra.Set("oauth_verifier", verifier)
	vals, err := d.tokenRequest(ctx, d.endpoints.AccessTokenURL, extra, storedToken, storedSecret, "exchange")
	if err != nil {
		return nil, err
	}
	accessToken := vals.Get("oauth_token")
	accessSecret := vals.Get("oauth_token_secret")
	if accessToken == "" {
		return nil, &ThirdPartyFailure{Provider: d.name, Op: "exchange", Status: 200, Body: vals.Encode()}
	}

	raw, err := d.fetchProfile(ctx, accessToken, accessSecret)
	if err != nil {
		return nil, err
	}

	return &Outcome{Complete: &Complete{
		Profile: d.normalize(raw),
		Credentials: Credentials{
			AccessToken:       accessToken,
			AccessTokenSecret: accessSecret,
		},
		Provider:     d.name,
		ProviderType: TypeOAuth1,
	}}, nil
}

// tokenRequest POSTs a signed request-token or access-token call and parses
// the form-encoded response.
func (d *OAuth1Driver) tokenRequest(ctx context.Context, rawURL string, extra url.Values, tok, tokSecret, op string) (url.Values, error) {
	params := d.signer.Params("POST", rawURL, extra, tok, tokSecret)
	for k := range extra {
		params.Set(k, extra.Get(k))
	}

	req, err := http.NewRequest("POST", rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", oauth1.AuthorizationHeader(params))

	status, body, err := doRequest(ctx, d.http, req, d.name, op)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, &ThirdPartyFailure{Provider: d.name, Op: op, Status: status, Body: string(body)}
	}

	vals, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, &ThirdPartyFailure{Provider: d.name, Op: op, Status: status, Body: string(body), Err: err}
	}
	return vals, nil
}

// fetchProfile issues a signed GET to the profile endpoint.
func (d *OAuth1Driver) fetchProfile(ctx context.Context, accessToken, accessSecret string) (RawProfile, error) {
	params := d.signer.Params("GET", d.endpoints.ProfileURL, nil, accessToken, accessSecret)

	req, err := http.NewRequest("GET", d.endpoints.ProfileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", oauth1.AuthorizationHeader(params))
	req.Header.Set("Accept", "application/json")

	status, body, err := doRequest(ctx, d.http, req, d.name, "profile")
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, &ThirdPartyFailure{Provider: d.name, Op: "profile", Status: status, Body: string(body)}
	}

	var raw RawProfile
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ThirdPartyFailure{Provider: d.name, Op: "profile", Status: status, Body: string(body), Err: err}
	}
	return raw, nil
}

func (d *OAuth1Driver) denied(reason, desc string) *Outcome {
	return &Outcome{Denied: &Denial{
		Reason:       reason,
		Description:  desc,
		Provider:     d.name,
		ProviderType: TypeOAuth1,
	}}
}
