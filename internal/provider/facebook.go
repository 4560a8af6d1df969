package provider

import (
	"context"
	"net/url"
	"strings"

	"github.com/dropDatabas3/authgate/internal/profile"
	"github.com/dropDatabas3/authgate/internal/session"
)

const (
	facebookAuthURL    = "https://www.facebook.com/dialog/oauth"
	facebookTokenURL   = "https://graph.facebook.com/oauth/access_token"
	facebookProfileURL = "https://graph.facebook.com/me"
	facebookFields     = "id,name,first_name,last_name,link,username,email,verified,gender,birthday,timezone,picture"
)

// NewFacebook builds the Facebook OAuth2 driver. The Graph API wants the
// access token as a query parameter and an explicit field list.
func NewFacebook(s Settings) (Driver, error) {
	if s.Scope == "" {
		s.Scope = "email"
	}
	d, err := NewOAuth2("facebook", s, OAuth2Endpoints{
		AuthURL:    facebookAuthURL,
		TokenURL:   facebookTokenURL,
		ProfileURL: facebookProfileURL,
	}, normalizeFacebook)
	if err != nil {
		return nil, err
	}
	d.fetchProfile = func(ctx context.Context, d *OAuth2Driver, _ session.Session, tok *TokenResponse) (RawProfile, error) {
		u := URLWithQuery(d.endpoints.ProfileURL, url.Values{
			"access_token": {tok.AccessToken},
			"fields":       {facebookFields},
		})
		return d.getJSON(ctx, u, "", "profile")
	}
	return d, nil
}

func normalizeFacebook(raw RawProfile) *profile.Profile {
	id := asString(raw["id"])
	name := asString(raw["name"])
	username := asString(raw["username"])

	p := &profile.Profile{
		Accounts:    []profile.Account{{Domain: "facebook.com", UserID: id, Username: username}},
		DisplayName: name,
		Gender:      asString(raw["gender"]),
		Birthday:    profile.ParseBirthday(asString(raw["birthday"]), "01/02/2006"),
	}

	// preferred username: last path segment of the profile link, unless it
	// is just the numeric id again
	if link := asString(raw["link"]); link != "" {
		seg := lastPathSegment(link)
		if seg != "" && seg != id && !strings.HasPrefix(seg, "profile.php") {
			p.PreferredUsername = seg
		}
	}
	if p.PreferredUsername == "" {
		p.PreferredUsername = username
	}

	if name != "" || raw["first_name"] != nil || raw["last_name"] != nil {
		p.Name = &profile.Name{
			Formatted:  name,
			GivenName:  asString(raw["first_name"]),
			FamilyName: asString(raw["last_name"]),
		}
	}

	if email := asString(raw["email"]); email != "" {
		p.Emails = []profile.Email{{Value: email, Primary: true}}
		if asBool(raw["verified"]) {
			p.VerifiedEmail = email
		} else {
			p.VerifiedEmail = false
		}
	}

	if tz, ok := raw["timezone"].(float64); ok {
		p.UTCOffset = profile.UTCOffsetFromHours(tz)
	}

	// picture is either a plain URL or {"data": {"url": ...}}
	switch pic := raw["picture"].(type) {
	case string:
		p.Photos = []map[string]any{{"value": pic, "type": "profile"}}
	case map[string]any:
		if data, ok := pic["data"].(map[string]any); ok {
			if u := asString(data["url"]); u != "" {
				p.Photos = []map[string]any{{"value": u, "type": "profile"}}
			}
		}
	}

	return p
}

func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.TrimSuffix(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
