package provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/url"

	"github.com/dropDatabas3/authgate/internal/profile"
	"github.com/dropDatabas3/authgate/internal/session"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// NewGoogle builds the Google driver: an OAuth2 code exchange whose profile
// comes from the verified id_token claims when one is returned (falling
// back to the userinfo endpoint otherwise).
func NewGoogle(s Settings) (Driver, error) {
	if s.Scope == "" {
		s.Scope = "openid email profile"
	}
	d, err := NewOAuth2("google", s, OAuth2Endpoints{
		AuthURL:    googleAuthURL,
		TokenURL:   googleTokenURL,
		ProfileURL: googleUserinfoURL,
	}, normalizeGoogle)
	if err != nil {
		return nil, err
	}
	d.authParams = url.Values{
		"access_type":            {"offline"},
		"include_granted_scopes": {"true"},
	}

	verifier := newGoogleVerifier(d.http)

	d.beforeRedirect = func(sess session.Session, auth url.Values) error {
		nonce, err := randomNonce(16)
		if err != nil {
			return err
		}
		sess.Set("oauth2:nonce:google", nonce)
		auth.Set("nonce", nonce)
		return nil
	}

	d.fetchProfile = func(ctx context.Context, d *OAuth2Driver, sess session.Session, tok *TokenResponse) (RawProfile, error) {
		if tok.IDToken == "" {
			return d.getJSON(ctx, d.endpoints.ProfileURL, tok.AccessToken, "profile")
		}
		nonce, _ := sess.Get("oauth2:nonce:google")
		sess.Delete("oauth2:nonce:google")
		claims, err := verifier.Verify(ctx, tok.IDToken, d.settings.Key, nonce)
		if err != nil {
			return nil, &ThirdPartyFailure{Provider: d.name, Op: "profile", Err: err}
		}
		return claims, nil
	}
	return d, nil
}

func normalizeGoogle(raw RawProfile) *profile.Profile {
	id := firstNonEmpty(asString(raw["sub"]), asString(raw["id"]))
	name := asString(raw["name"])
	given := asString(raw["given_name"])
	family := asString(raw["family_name"])

	p := &profile.Profile{
		Accounts:    []profile.Account{{Domain: "google.com", UserID: id}},
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

func randomNonce(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
