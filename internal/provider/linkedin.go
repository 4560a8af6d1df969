package provider

import (
	"strings"

	"github.com/dropDatabas3/authgate/internal/profile"
)

const (
	linkedinAuthURL    = "https://www.linkedin.com/oauth/v2/authorization"
	linkedinTokenURL   = "https://www.linkedin.com/oauth/v2/accessToken"
	linkedinProfileURL = "https://api.linkedin.com/v2/userinfo"
)

// NewLinkedIn builds the LinkedIn OAuth2 driver. The userinfo endpoint
// serves OIDC-shaped claims when the openid scopes are granted.
func NewLinkedIn(s Settings) (Driver, error) {
	if s.Scope == "" {
		s.Scope = "openid profile email"
	}
	return NewOAuth2("linkedin", s, OAuth2Endpoints{
		AuthURL:    linkedinAuthURL,
		TokenURL:   linkedinTokenURL,
		ProfileURL: linkedinProfileURL,
	}, normalizeLinkedIn)
}

func normalizeLinkedIn(raw RawProfile) *profile.Profile {
	id := firstNonEmpty(asString(raw["sub"]), asString(raw["id"]))
	name := asString(raw["name"])
	given := asString(raw["given_name"])
	family := asString(raw["family_name"])
	if name == "" && (given != "" || family != "") {
		name = strings.TrimSpace(given + " " + family)
	}

	p := &profile.Profile{
		Accounts:    []profile.Account{{Domain: "linkedin.com", UserID: id}},
		DisplayName: name,
	}

	if name != "" || given != "" || family != "" {
		p.Name = &profile.Name{Formatted: name, GivenName: given, FamilyName: family}
	}

	if email := asString(raw["email"]); email != "" {
		p.Emails = []profile.Email{{Value: email, Primary: true}}
		if asBool(raw["email_verified"]) {
			p.VerifiedEmail = email
		} else {
			p.VerifiedEmail = false
		}
	}

	if pic := asString(raw["picture"]); pic != "" {
		p.Photos = []map[string]any{{"value": pic, "type": "profile"}}
	}

	return p
}
