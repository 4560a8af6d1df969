package provider

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/authgate/internal/profile"
	"github.com/dropDatabas3/authgate/internal/session"
)

const (
	githubAuthURL   = "https://github.com/login/oauth/authorize"
	githubTokenURL  = "https://github.com/login/oauth/access_token"
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// NewGitHub builds the GitHub OAuth2 driver. The /user payload omits the
// email when the user keeps it private, so the emails endpoint is consulted
// as a fallback when the scope allows it.
func NewGitHub(s Settings) (Driver, error) {
	if s.Scope == "" {
		s.Scope = "read:user user:email"
	}
	d, err := NewOAuth2("github", s, OAuth2Endpoints{
		AuthURL:    githubAuthURL,
		TokenURL:   githubTokenURL,
		ProfileURL: githubUserURL,
	}, normalizeGitHub)
	if err != nil {
		return nil, err
	}
	d.fetchProfile = func(ctx context.Context, d *OAuth2Driver, _ session.Session, tok *TokenResponse) (RawProfile, error) {
		raw, err := d.getJSON(ctx, d.endpoints.ProfileURL, tok.AccessToken, "profile")
		if err != nil {
			return nil, err
		}
		if asString(raw["email"]) == "" {
			if email, verified, ok := githubPrimaryEmail(ctx, d.http, tok.AccessToken); ok {
				raw["email"] = email
				raw["email_verified"] = verified
			}
		}
		return raw, nil
	}
	return d, nil
}

// githubPrimaryEmail fetches /user/emails and picks the primary address.
// Failures are swallowed: the profile is still usable without an email.
func githubPrimaryEmail(ctx context.Context, client *http.Client, accessToken string) (email string, verified, ok bool) {
	req, err := http.NewRequest("GET", githubEmailsURL, nil)
	if err != nil {
		return "", false, false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	status, body, err := doRequest(ctx, client, req, "github", "emails")
	if err != nil || status/100 != 2 {
		return "", false, false
	}

	var entries []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", false, false
	}
	for _, e := range entries {
		if e.Primary && e.Email != "" {
			return e.Email, e.Verified, true
		}
	}
	for _, e := range entries {
		if e.Email != "" {
			return e.Email, e.Verified, true
		}
	}
	return "", false, false
}

func normalizeGitHub(raw RawProfile) *profile.Profile {
	id := asString(raw["id"])
	login := asString(raw["login"])
	name := asString(raw["name"])

	p := &profile.Profile{
		Accounts:          []profile.Account{{Domain: "github.com", UserID: id, Username: login}},
		DisplayName:       firstNonEmpty(name, login),
		PreferredUsername: login,
	}

	if name != "" {
		p.Name = &profile.Name{Formatted: name}
	}

	if email := asString(raw["email"]); email != "" {
		p.Emails = []profile.Email{{Value: email, Primary: true}}
		if asBool(raw["email_verified"]) {
			p.VerifiedEmail = email
		} else {
			p.VerifiedEmail = false
		}
	}

	if u := asString(raw["html_url"]); u != "" {
		p.URLs = []map[string]any{{"value": u, "type": "profile"}}
	}
	if pic := asString(raw["avatar_url"]); pic != "" {
		p.Photos = []map[string]any{{"value": pic, "type": "profile"}}
	}
	if about := asString(raw["bio"]); about != "" {
		p.AboutMe = about
	}

	return p
}
