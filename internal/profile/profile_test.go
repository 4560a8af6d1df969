package profile

import (
	"testing"
)

func TestMap_StripsFalsyFields(t *testing.T) {
	t.Parallel()
	p := &Profile{
		Accounts:    []Account{{Domain: "example.com", UserID: "42"}},
		DisplayName: "",
		Name:        &Name{GivenName: "", FamilyName: ""},
		Emails:      []Email{{Value: ""}},
		Gender:      "",
		Birthday:    "",
		Photos:      []map[string]any{{"value": ""}},
		URLs:        nil,
	}
	m := p.Map()

	if _, ok := m["accounts"]; !ok {
		t.Fatal("accounts must survive")
	}
	for _, key := range []string{
		"displayName", "preferredUsername", "name", "emails",
		"verifiedEmail", "gender", "birthday", "utcOffset",
		"photos", "urls", "phoneNumbers", "addresses",
	} {
		if _, ok := m[key]; ok {
			t.Fatalf("falsy field %q must be stripped, got %v", key, m[key])
		}
	}
}

func TestMap_KeepsPopulatedFields(t *testing.T) {
	t.Parallel()
	p := &Profile{
		Accounts:          []Account{{Domain: "facebook.com", UserID: "1", Username: "homer"}},
		DisplayName:       "Homer Simpson",
		PreferredUsername: "homer",
		Name:              &Name{Formatted: "Homer Simpson", GivenName: "Homer", FamilyName: "Simpson"},
		Emails:            []Email{{Value: "homer@example.com", Primary: true}},
		VerifiedEmail:     "homer@example.com",
		Gender:            "male",
		Birthday:          "1956-05-12",
		Photos:            []map[string]any{{"value": "https://example.com/p.jpg", "type": "profile"}},
	}
	m := p.Map()

	accts, ok := m["accounts"].([]map[string]any)
	if !ok || len(accts) != 1 {
		t.Fatalf("accounts = %v", m["accounts"])
	}
	if accts[0]["domain"] != "facebook.com" || accts[0]["userid"] != "1" || accts[0]["username"] != "homer" {
		t.Fatalf("account mismatch: %v", accts[0])
	}
	name, ok := m["name"].(map[string]any)
	if !ok || name["givenName"] != "Homer" || name["familyName"] != "Simpson" {
		t.Fatalf("name mismatch: %v", m["name"])
	}
	if m["verifiedEmail"] != "homer@example.com" {
		t.Fatalf("verifiedEmail = %v", m["verifiedEmail"])
	}
	emails, ok := m["emails"].([]map[string]any)
	if !ok || len(emails) != 1 || emails[0]["value"] != "homer@example.com" || emails[0]["primary"] != true {
		t.Fatalf("emails mismatch: %v", m["emails"])
	}
}

func TestMap_VerifiedEmailFalseSentinelSurvives(t *testing.T) {
	t.Parallel()
	p := &Profile{
		Accounts:      []Account{{Domain: "facebook.com", UserID: "1"}},
		VerifiedEmail: false,
	}
	m := p.Map()
	v, ok := m["verifiedEmail"]
	if !ok {
		t.Fatal("explicit false sentinel must be kept")
	}
	if v != false {
		t.Fatalf("verifiedEmail = %v, want false", v)
	}
}

func TestParseBirthday(t *testing.T) {
	t.Parallel()
	if got := ParseBirthday("05/12/1956", "01/02/2006"); got != "1956-05-12" {
		t.Fatalf("facebook layout: got %q", got)
	}
	if got := ParseBirthday("not-a-date", "01/02/2006"); got != "" {
		t.Fatalf("invalid date must yield empty, got %q", got)
	}
	if got := ParseBirthday("", "01/02/2006"); got != "" {
		t.Fatalf("empty input must yield empty, got %q", got)
	}
}

func TestBirthdayFromParts(t *testing.T) {
	t.Parallel()
	cases := []struct {
		y, m, d int
		want    string
	}{
		{1956, 5, 12, "1956-05-12"},
		{1990, 2, 30, ""}, // normalized away by time.Date
		{0, 5, 12, ""},
		{1956, 13, 1, ""},
		{1956, 0, 1, ""},
		{1956, 5, 0, ""},
	}
	for _, c := range cases {
		if got := BirthdayFromParts(c.y, c.m, c.d); got != c.want {
			t.Fatalf("BirthdayFromParts(%d,%d,%d) = %q, want %q", c.y, c.m, c.d, got, c.want)
		}
	}
}

func TestNormalizeUTCOffset(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"-8":     "-08:00",
		"+5:30":  "+05:30",
		"5:30":   "+05:30",
		"10:45":  "+10:45",
		"-03:00": "-03:00",
		"0":      "+00:00",
		"":       "",
		"abc":    "",
	}
	for in, want := range cases {
		if got := NormalizeUTCOffset(in); got != want {
			t.Fatalf("NormalizeUTCOffset(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUTCOffsetFromHours(t *testing.T) {
	t.Parallel()
	cases := map[float64]string{
		-8:   "-08:00",
		5.5:  "+05:30",
		0:    "+00:00",
		9.75: "+09:45",
	}
	for in, want := range cases {
		if got := UTCOffsetFromHours(in); got != want {
			t.Fatalf("UTCOffsetFromHours(%v) = %q, want %q", in, got, want)
		}
	}
}
