package provider

import (
	"strings"

	"github.com/dropDatabas3/authgate/internal/profile"
)

const (
	twitterRequestTokenURL = "https://api.twitter.com/oauth/request_token"
	twitterAuthorizeURL    = "https://api.twitter.com/oauth/authenticate"
	twitterAccessTokenURL  = "https://api.twitter.com/oauth/access_token"
	twitterProfileURL      = "https://api.twitter.com/1.1/account/verify_credentials.json"
)

// NewTwitter builds the Twitter OAuth1 driver.
func NewTwitter(s Settings) (Driver, error) {
	return NewOAuth1("twitter", s, OAuth1Endpoints{
		RequestTokenURL: twitterRequestTokenURL,
		AuthorizeURL:    twitterAuthorizeURL,
		AccessTokenURL:  twitterAccessTokenURL,
		ProfileURL:      twitterProfileURL,
	}, normalizeTwitter)
}

func normalizeTwitter(raw RawProfile) *profile.Profile {
	id := firstNonEmpty(asString(raw["id_str"]), asString(raw["id"]))
	screenName := asString(raw["screen_name"])
	name := asString(raw["name"])

	p := &profile.Profile{
		Accounts:          []profile.Account{{Domain: "twitter.com", UserID: id, Username: screenName}},
		DisplayName:       firstNonEmpty(name, screenName),
		PreferredUsername: screenName,
	}

	if name != "" {
		p.Name = &profile.Name{Formatted: name}
	}

	if pic := asString(raw["profile_image_url_https"]); pic != "" {
		// drop the _normal size suffix to get the original image
		p.Photos = []map[string]any{{"value": strings.Replace(pic, "_normal.", ".", 1), "type": "profile"}}
	}
	if screenName != "" {
		p.URLs = []map[string]any{{"value": "https://twitter.com/" + screenName, "type": "profile"}}
	}
	if about := asString(raw["description"]); about != "" {
		p.AboutMe = about
	}
	if tz := asString(raw["utc_offset"]); tz != "" {
		if secs, ok := raw["utc_offset"].(float64); ok {
			p.UTCOffset = profile.UTCOffsetFromHours(secs / 3600)
		}
	}

	return p
}
