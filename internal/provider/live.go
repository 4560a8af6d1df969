package provider

import (
	"github.com/dropDatabas3/authgate/internal/profile"
)

const (
	liveAuthURL    = "https://login.live.com/oauth20_authorize.srf"
	liveTokenURL   = "https://login.live.com/oauth20_token.srf"
	liveProfileURL = "https://apis.live.net/v5.0/me"
)

// NewLive builds the Windows Live OAuth2 driver.
func NewLive(s Settings) (Driver, error) {
	if s.Scope == "" {
		s.Scope = "wl.basic wl.emails wl.birthday"
	}
	return NewOAuth2("live", s, OAuth2Endpoints{
		AuthURL:    liveAuthURL,
		TokenURL:   liveTokenURL,
		ProfileURL: liveProfileURL,
	}, normalizeLive)
}

func normalizeLive(raw RawProfile) *profile.Profile {
	id := asString(raw["id"])
	name := asString(raw["name"])
	given := asString(raw["first_name"])
	family := asString(raw["last_name"])

	p := &profile.Profile{
		Accounts:    []profile.Account{{Domain: "live.com", UserID: id}},
		DisplayName: name,
		Gender:      asString(raw["gender"]),
		// birth components arrive as separate integers
		Birthday: profile.BirthdayFromParts(asInt(raw["birth_year"]), asInt(raw["birth_month"]), asInt(raw["birth_day"])),
	}

	if name != "" || given != "" || family != "" {
		p.Name = &profile.Name{Formatted: name, GivenName: given, FamilyName: family}
	}

	// emails: {"preferred": ..., "account": ..., "personal": ..., "business": ...}
	if emails, ok := raw["emails"].(map[string]any); ok {
		seen := map[string]bool{}
		preferred := asString(emails["preferred"])
		for _, key := range []string{"preferred", "account", "personal", "business"} {
			v := asString(emails[key])
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			p.Emails = append(p.Emails, profile.Email{Value: v, Type: key, Primary: v == preferred && preferred != ""})
		}
	}

	if u := asString(raw["link"]); u != "" {
		p.URLs = []map[string]any{{"value": u, "type": "profile"}}
	}

	return p
}
