package oauth1

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

// Known vector from Twitter's "Creating a signature" developer documentation.
func TestParams_KnownTwitterVector(t *testing.T) {
	t.Parallel()
	s := NewSigner("xvz1evFS4wEEPTGEFPHBog", "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw")
	s.nonce = func() string { return "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg" }
	s.clock = func() time.Time { return time.Unix(1318622958, 0) }

	extra := url.Values{}
	extra.Set("include_entities", "true")
	extra.Set("status", "Hello Ladies + Gentlemen, a signed OAuth request!")

	params := s.Params("POST", "https://api.twitter.com/1/statuses/update.json", extra,
		"370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
		"LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE")

	want := "tnnArxj06cWHq44gCs1OSKk/jLY="
	if got := params.Get("oauth_signature"); got != want {
		t.Fatalf("oauth_signature = %q, want %q", got, want)
	}
	if params.Get("oauth_signature_method") != "HMAC-SHA1" {
		t.Fatalf("signature method = %q", params.Get("oauth_signature_method"))
	}
	if params.Get("oauth_timestamp") != "1318622958" {
		t.Fatalf("timestamp = %q", params.Get("oauth_timestamp"))
	}
}

func TestBaseString_SortsAndEncodes(t *testing.T) {
	t.Parallel()
	params := url.Values{}
	params.Set("b", "two words")
	params.Set("a", "1")

	got := BaseString("get", "http://example.com:80/path?z=9", params)
	want := "GET&http%3A%2F%2Fexample.com%2Fpath&a%3D1%26b%3Dtwo%2520words%26z%3D9"
	if got != want {
		t.Fatalf("base string mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestBaseString_ExcludesSignature(t *testing.T) {
	t.Parallel()
	params := url.Values{}
	params.Set("oauth_signature", "should-not-appear")
	params.Set("a", "1")

	got := BaseString("POST", "https://example.com/", params)
	if contains := "should-not-appear"; len(got) > 0 && (strings.Contains(got, contains)) {
		t.Fatalf("base string must not include oauth_signature: %s", got)
	}
}

func TestPercentEncode(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"abcABC123":   "abcABC123",
		"-._~":        "-._~",
		"Ladies + G":  "Ladies%20%2B%20G",
		"ñ":           "%C3%B1",
		"100%":        "100%25",
		"a=b&c":       "a%3Db%26c",
	}
	for in, want := range cases {
		if got := percentEncode(in); got != want {
			t.Fatalf("percentEncode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAuthorizationHeader(t *testing.T) {
	t.Parallel()
	params := url.Values{}
	params.Set("oauth_consumer_key", "key")
	params.Set("oauth_signature", "sig/+=")

	h := AuthorizationHeader(params)
	if h[:6] != "OAuth " {
		t.Fatalf("header must start with OAuth prefix: %q", h)
	}
	if !strings.Contains(h, `oauth_consumer_key="key"`) {
		t.Fatalf("missing consumer key in %q", h)
	}
	if !strings.Contains(h, `oauth_signature="sig%2F%2B%3D"`) {
		t.Fatalf("signature must be percent-encoded in %q", h)
	}
}
