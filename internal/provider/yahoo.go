package provider

import "net/url"

// Yahoo uses OpenID directed identity: a fixed OP endpoint, no per-request
// discovery.
const yahooOPEndpoint = "https://open.login.yahooapis.com/openid/op/auth"

// NewYahoo builds the Yahoo OpenID driver.
func NewYahoo(s Settings) (Driver, error) {
	return NewOpenIDDriver(OpenIDConfig{
		Name:        "yahoo",
		Domain:      "yahoo.com",
		OPEndpoint:  yahooOPEndpoint,
		CallbackURL: s.CallbackURL,
		Realm:       realmFromCallback(s.CallbackURL),
	}, nil)
}

// realmFromCallback derives the openid.realm (scheme plus host) from the
// callback URL.
func realmFromCallback(callback string) string {
	u, err := url.Parse(callback)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// NewOpenID builds the generic OpenID driver: the OP endpoint is discovered
// per login from the submitted openid_identifier.
func NewOpenID(s Settings) (Driver, error) {
	return NewOpenIDDriver(OpenIDConfig{
		Name:        "openid",
		CallbackURL: s.CallbackURL,
		Realm:       realmFromCallback(s.CallbackURL),
	}, nil)
}
