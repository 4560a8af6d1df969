// Package profile defines the canonical identity record the gateway hands
// back to caller applications, a Portable Contacts style schema. Every
// provider normalizer produces one of these; Map() applies the universal
// falsy-strip before serialization.
package profile

import (
	"fmt"
	"time"
)

// Account identifies the user at one provider.
type Account struct {
	Domain   string `json:"domain"`
	UserID   string `json:"userid"`
	Username string `json:"username,omitempty"`
}

// Name holds the decomposed name fields.
type Name struct {
	Formatted       string `json:"formatted,omitempty"`
	GivenName       string `json:"givenName,omitempty"`
	FamilyName      string `json:"familyName,omitempty"`
	MiddleName      string `json:"middleName,omitempty"`
	HonorificPrefix string `json:"honorificPrefix,omitempty"`
	HonorificSuffix string `json:"honorificSuffix,omitempty"`
}

// Email is one address entry.
type Email struct {
	Value   string `json:"value"`
	Type    string `json:"type,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// Profile is the canonical identity record. Construct it field by field in a
// normalizer and call Map() to get the stripped, JSON-able structure.
type Profile struct {
	Accounts          []Account
	DisplayName       string
	PreferredUsername string
	Name              *Name
	Emails            []Email

	// VerifiedEmail is the verified address when the provider confirmed one,
	// or the literal false when the provider reported the address as
	// unverified. Leave nil when unknown; nil is stripped, false is kept.
	VerifiedEmail any

	Gender    string
	Birthday  string // ISO-8601 YYYY-MM-DD
	UTCOffset string
	AboutMe   string

	// Provider-shaped sub-records, passed through after stripping.
	Photos       []map[string]any
	URLs         []map[string]any
	PhoneNumbers []map[string]any
	Addresses    []map[string]any
}

// Map renders the profile as a map with every falsy field stripped: empty
// strings, nil, false (except the explicit VerifiedEmail sentinel), empty
// lists, and lists whose first element is falsy are all omitted.
func (p *Profile) Map() map[string]any {
	out := map[string]any{}

	if accts := accountMaps(p.Accounts); len(accts) > 0 {
		out["accounts"] = accts
	}
	putString(out, "displayName", p.DisplayName)
	putString(out, "preferredUsername", p.PreferredUsername)

	if p.Name != nil {
		name := map[string]any{}
		putString(name, "formatted", p.Name.Formatted)
		putString(name, "givenName", p.Name.GivenName)
		putString(name, "familyName", p.Name.FamilyName)
		putString(name, "middleName", p.Name.MiddleName)
		putString(name, "honorificPrefix", p.Name.HonorificPrefix)
		putString(name, "honorificSuffix", p.Name.HonorificSuffix)
		if len(name) > 0 {
			out["name"] = name
		}
	}

	if emails := emailMaps(p.Emails); len(emails) > 0 {
		out["emails"] = emails
	}

	switch v := p.VerifiedEmail.(type) {
	case string:
		if v != "" {
			out["verifiedEmail"] = v
		}
	case bool:
		// explicit false sentinel: provider saw the address but could not
		// verify it
		if !v {
			out["verifiedEmail"] = false
		}
	}

	putString(out, "gender", p.Gender)
	putString(out, "birthday", p.Birthday)
	putString(out, "utcOffset", p.UTCOffset)
	putString(out, "aboutMe", p.AboutMe)

	putList(out, "photos", p.Photos)
	putList(out, "urls", p.URLs)
	putList(out, "phoneNumbers", p.PhoneNumbers)
	putList(out, "addresses", p.Addresses)

	return out
}

func accountMaps(accts []Account) []map[string]any {
	var out []map[string]any
	for _, a := range accts {
		if a.Domain == "" && a.UserID == "" && a.Username == "" {
			continue
		}
		m := map[string]any{}
		putString(m, "domain", a.Domain)
		putString(m, "userid", a.UserID)
		putString(m, "username", a.Username)
		out = append(out, m)
	}
	return out
}

func emailMaps(emails []Email) []map[string]any {
	var out []map[string]any
	for _, e := range emails {
		if e.Value == "" {
			continue
		}
		m := map[string]any{"value": e.Value}
		putString(m, "type", e.Type)
		if e.Primary {
			m["primary"] = true
		}
		out = append(out, m)
	}
	return out
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

// putList keeps a sub-record list only when non-empty and its first element
// carries data.
func putList(m map[string]any, key string, list []map[string]any) {
	var kept []map[string]any
	for _, e := range list {
		cleaned := map[string]any{}
		for k, v := range e {
			if falsy(v) {
				continue
			}
			cleaned[k] = v
		}
		if len(cleaned) > 0 {
			kept = append(kept, cleaned)
		}
	}
	if len(kept) > 0 {
		m[key] = kept
	}
}

func falsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int:
		return t == 0
	case float64:
		return t == 0
	default:
		return false
	}
}

// ParseBirthday converts a provider-specific date layout to ISO-8601
// YYYY-MM-DD. Returns empty on any parse failure: an unparseable birthday
// is omitted, never an error.
func ParseBirthday(raw, layout string) string {
	if raw == "" {
		return ""
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// BirthdayFromParts builds an ISO date from integer year/month/day
// components (Windows Live style), tolerating invalid components by
// returning empty.
func BirthdayFromParts(year, month, day int) string {
	if year <= 0 || month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (Feb 30 -> Mar 2); reject those
	if int(t.Month()) != month || t.Day() != day || t.Year() != year {
		return ""
	}
	return t.Format("2006-01-02")
}

// NormalizeUTCOffset renders an hour or hour:minute offset as ±HH:MM,
// zero-padding single digits. Accepts "-8", "+5:30", "10:45", "-03:00".
// Returns empty for anything unparseable.
func NormalizeUTCOffset(raw string) string {
	if raw == "" {
		return ""
	}
	sign := "+"
	s := raw
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = "-"
		s = s[1:]
	}

	var hh, mm int
	if n, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err == nil && n == 2 {
		// hour:minute form
	} else if n, err := fmt.Sscanf(s, "%d", &hh); err != nil || n != 1 {
		return ""
	}
	if hh < 0 || hh > 14 || mm < 0 || mm > 59 {
		return ""
	}
	return fmt.Sprintf("%s%02d:%02d", sign, hh, mm)
}

// UTCOffsetFromHours renders a numeric hour offset (possibly fractional,
// e.g. Facebook's timezone field) as ±HH:MM.
func UTCOffsetFromHours(hours float64) string {
	sign := "+"
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	hh := int(hours)
	mm := int((hours - float64(hh)) * 60)
	if hh > 14 {
		return ""
	}
	return fmt.Sprintf("%s%02d:%02d", sign, hh, mm)
}
