package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/profile"
	"github.com/dropDatabas3/authgate/internal/session"
	"github.com/dropDatabas3/authgate/internal/token"
)

const (
	openidNS         = "http://specs.openid.net/auth/2.0"
	openidSelect     = "http://specs.openid.net/auth/2.0/identifier_select"
	sregNS           = "http://openid.net/extensions/sreg/1.1"
	axNS             = "http://openid.net/srv/ax/1.0"
	axSchemaEmail    = "http://axschema.org/contact/email"
	axSchemaFullname = "http://axschema.org/namePerson"
	axSchemaFirst    = "http://axschema.org/namePerson/first"
	axSchemaLast     = "http://axschema.org/namePerson/last"
)

// OpenIDDriver is the OpenID 2.0 relying-party state machine in stateless
// mode: assertions are verified with a direct check_authentication call
// instead of a shared association. When OPEndpoint is set the driver uses
// directed identity (Yahoo style); otherwise discovery runs on the
// user-supplied identifier.
type OpenIDDriver struct {
	name        string
	domain      string // account domain for normalized profiles
	opEndpoint  string // fixed endpoint; empty means discover per request
	callbackURL string
	realm       string
	normalize   func(claimedID string, sreg, ax map[string]string) *profile.Profile
	http        *http.Client
}

// OpenIDConfig parameterizes an OpenID driver instance.
type OpenIDConfig struct {
	Name        string
	Domain      string
	OPEndpoint  string
	CallbackURL string
	Realm       string
}

// NewOpenIDDriver builds an OpenID driver instance.
func NewOpenIDDriver(cfg OpenIDConfig, normalize func(string, map[string]string, map[string]string) *profile.Profile) (*OpenIDDriver, error) {
	if cfg.CallbackURL == "" {
		return nil, fmt.Errorf("provider %s: callback url is required", cfg.Name)
	}
	d := &OpenIDDriver{
		name:        cfg.Name,
		domain:      cfg.Domain,
		opEndpoint:  cfg.OPEndpoint,
		callbackURL: cfg.CallbackURL,
		realm:       cfg.Realm,
		normalize:   normalize,
		http:        newHTTPClient(),
	}
	if d.normalize == nil {
		d.normalize = d.defaultNormalize
	}
	return d, nil
}

func (d *OpenIDDriver) Name() string { return d.name }
func (d *OpenIDDriver) Type() Type   { return TypeOpenID }

func (d *OpenIDDriver) stateKey() string    { return "openid:state:" + d.name }
func (d *OpenIDDriver) endpointKey() string { return "openid:endpoint:" + d.name }

// Login resolves the OP endpoint (fixed or discovered from the
// openid_identifier form value), attaches SReg and AX extension requests,
// and builds the checkid_setup redirect. A discovery failure returns
// ErrDiscovery immediately, with no redirect.
func (d *OpenIDDriver) Login(ctx context.Context, r *http.Request, sess session.Session) (string, error) {
	endpoint := d.opEndpoint
	if endpoint == "" {
		identifier := strings.TrimSpace(r.FormValue("openid_identifier"))
		if identifier == "" {
			return "", fmt.Errorf("%w: no openid identifier supplied", ErrDiscovery)
		}
		var err error
		endpoint, err = d.discover(ctx, identifier)
		if err != nil {
			return "", err
		}
	}

	state, err := token.NewState()
	if err != nil {
		return "", err
	}
	sess.Set(d.stateKey(), state)
	sess.Set(d.endpointKey(), endpoint)

	returnTo := URLWithQuery(d.callbackURL, url.Values{"state": {state}})

	params := url.Values{}
	params.Set("openid.ns", openidNS)
	params.Set("openid.mode", "checkid_setup")
	params.Set("openid.claimed_id", openidSelect)
	params.Set("openid.identity", openidSelect)
	params.Set("openid.return_to", returnTo)
	if d.realm != "" {
		params.Set("openid.realm", d.realm)
	}

	// Simple Registration request
	params.Set("openid.ns.sreg", sregNS)
	params.Set("openid.sreg.optional", "email,fullname,nickname,timezone")

	// Attribute Exchange request
	params.Set("openid.ns.ax", axNS)
	params.Set("openid.ax.mode", "fetch_request")
	params.Set("openid.ax.type.email", axSchemaEmail)
	params.Set("openid.ax.type.fullname", axSchemaFullname)
	params.Set("openid.ax.type.firstname", axSchemaFirst)
	params.Set("openid.ax.type.lastname", axSchemaLast)
	params.Set("openid.ax.required", "email,fullname,firstname,lastname")

	logger.From(ctx).Debug("openid checkid_setup built",
		logger.Provider(d.name), logger.Endpoint(endpoint), logger.Layer("driver"))
	return URLWithQuery(endpoint, params), nil
}

// Callback validates the state, verifies the positive assertion with a
// check_authentication call, and normalizes SReg/AX attributes.
func (d *OpenIDDriver) Callback(ctx context.Context, r *http.Request, sess session.Session) (*Outcome, error) {
	q := r.URL.Query()

	if q.Get("openid.mode") == "cancel" {
		return d.denied("cancel", "the user cancelled at the provider"), nil
	}

	stored, ok := sess.Get(d.stateKey())
	endpoint, _ := sess.Get(d.endpointKey())
	sess.Delete(d.stateKey())
	sess.Delete(d.endpointKey())
	if !ok || stored == "" || q.Get("state") != stored {
		return nil, ErrCSRF
	}
	if endpoint == "" {
		endpoint = d.opEndpoint
	}

	if q.Get("openid.mode") != "id_res" {
		return d.denied("invalid_mode", "unexpected openid mode "+q.Get("openid.mode")), nil
	}

	valid, err := d.checkAuthentication(ctx, endpoint, q)
	if err != nil {
		return nil, err
	}
	if !valid {
		// validation failure is a denial-class outcome, not a server error
		return d.denied("invalid_assertion", "the provider did not confirm the assertion"), nil
	}

	claimedID := q.Get("openid.claimed_id")
	sreg, ax := extractAttributes(q)

	return &Outcome{Complete: &Complete{
		Profile:      d.normalize(claimedID, sreg, ax),
		Credentials:  Credentials{},
		Provider:     d.name,
		ProviderType: TypeOpenID,
	}}, nil
}

func (d *OpenIDDriver) denied(reason, desc string) *Outcome {
	return &Outcome{Denied: &Denial{
		Reason:       reason,
		Description:  desc,
		Provider:     d.name,
		ProviderType: TypeOpenID,
	}}
}

// checkAuthentication replays the assertion to the OP with
// openid.mode=check_authentication and reads is_valid from the key-value
// response body.
func (d *OpenIDDriver) checkAuthentication(ctx context.Context, endpoint string, q url.Values) (bool, error) {
	form := url.Values{}
	for k, vs := range q {
		if !strings.HasPrefix(k, "openid.") {
			continue
		}
		for _, v := range vs {
			form.Add(k, v)
		}
	}
	form.Set("openid.mode", "check_authentication")

	req, err := http.NewRequest("POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := doRequest(ctx, d.http, req, d.name, "verify")
	if err != nil {
		return false, err
	}
	if status/100 != 2 {
		return false, &ThirdPartyFailure{Provider: d.name, Op: "verify", Status: status, Body: string(body)}
	}

	for _, line := range strings.Split(string(body), "\n") {
		k, v, found := strings.Cut(strings.TrimSpace(line), ":")
		if found && k == "is_valid" {
			return v == "true", nil
		}
	}
	return false, nil
}

var (
	xrdsURIRe    = regexp.MustCompile(`(?s)<URI[^>]*>\s*([^<\s]+)\s*</URI>`)
	openidLinkRe = regexp.MustCompile(`<link[^>]+rel=["'][^"']*openid2\.provider[^"']*["'][^>]*>`)
	linkHrefRe   = regexp.MustCompile(`href=["']([^"']+)["']`)
)

// discover resolves the OP endpoint for a user-supplied identifier: Yadis
// (X-XRDS-Location) first, then the HTML openid2.provider link.
func (d *OpenIDDriver) discover(ctx context.Context, identifier string) (string, error) {
	if !strings.HasPrefix(identifier, "http://") && !strings.HasPrefix(identifier, "https://") {
		identifier = "https://" + identifier
	}

	req, err := http.NewRequest("GET", identifier, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	req.Header.Set("Accept", "application/xrds+xml, text/html")

	resp, err := d.http.Do(req.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: identifier fetch returned http %d", ErrDiscovery, resp.StatusCode)
	}

	body := readBounded(resp)

	if loc := resp.Header.Get("X-XRDS-Location"); loc != "" && loc != identifier {
		return d.discoverXRDS(ctx, loc)
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "xrds") {
		if m := xrdsURIRe.FindStringSubmatch(body); m != nil {
			return m[1], nil
		}
	}
	if link := openidLinkRe.FindString(body); link != "" {
		if m := linkHrefRe.FindStringSubmatch(link); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: no provider endpoint found for identifier", ErrDiscovery)
}

func (d *OpenIDDriver) discoverXRDS(ctx context.Context, loc string) (string, error) {
	req, err := http.NewRequest("GET", loc, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	resp, err := d.http.Do(req.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: xrds fetch returned http %d", ErrDiscovery, resp.StatusCode)
	}
	if m := xrdsURIRe.FindStringSubmatch(readBounded(resp)); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: xrds document carries no URI", ErrDiscovery)
}

// extractAttributes pulls SReg fields and alias-resolved AX attributes out
// of the assertion parameters.
func extractAttributes(q url.Values) (sreg, ax map[string]string) {
	sreg = map[string]string{}
	ax = map[string]string{}

	// alias under which each extension namespace arrived
	sregAlias, axAlias := "sreg", "ax"
	for k, vs := range q {
		if !strings.HasPrefix(k, "openid.ns.") || len(vs) == 0 {
			continue
		}
		alias := strings.TrimPrefix(k, "openid.ns.")
		switch vs[0] {
		case sregNS:
			sregAlias = alias
		case axNS:
			axAlias = alias
		}
	}

	sregPrefix := "openid." + sregAlias + "."
	for k, vs := range q {
		if strings.HasPrefix(k, sregPrefix) && len(vs) > 0 {
			sreg[strings.TrimPrefix(k, sregPrefix)] = vs[0]
		}
	}

	// AX: openid.<alias>.type.<name> maps a name to a schema URI,
	// openid.<alias>.value.<name> carries the value.
	typePrefix := "openid." + axAlias + ".type."
	valuePrefix := "openid." + axAlias + ".value."
	types := map[string]string{} // name -> schema uri
	for k, vs := range q {
		if strings.HasPrefix(k, typePrefix) && len(vs) > 0 {
			types[strings.TrimPrefix(k, typePrefix)] = vs[0]
		}
	}
	for name, uri := range types {
		if v := q.Get(valuePrefix + name); v != "" {
			ax[uri] = v
		}
	}
	return sreg, ax
}

// defaultNormalize maps SReg/AX attributes into the canonical profile.
func (d *OpenIDDriver) defaultNormalize(claimedID string, sreg, ax map[string]string) *profile.Profile {
	domain := d.domain
	if domain == "" {
		if u, err := url.Parse(claimedID); err == nil {
			domain = u.Host
		}
	}

	p := &profile.Profile{
		Accounts: []profile.Account{{Domain: domain, UserID: claimedID, Username: sreg["nickname"]}},
	}

	fullname := firstNonEmpty(ax[axSchemaFullname], sreg["fullname"])
	first := ax[axSchemaFirst]
	last := ax[axSchemaLast]
	if fullname == "" && (first != "" || last != "") {
		fullname = strings.TrimSpace(first + " " + last)
	}
	p.DisplayName = firstNonEmpty(fullname, sreg["nickname"])
	p.PreferredUsername = sreg["nickname"]
	if fullname != "" || first != "" || last != "" {
		p.Name = &profile.Name{Formatted: fullname, GivenName: first, FamilyName: last}
	}

	if email := firstNonEmpty(ax[axSchemaEmail], sreg["email"]); email != "" {
		p.Emails = []profile.Email{{Value: email}}
	}
	p.UTCOffset = profile.NormalizeUTCOffset(sreg["timezone"])

	return p
}

func readBounded(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return string(b)
}
