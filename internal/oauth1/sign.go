// Package oauth1 implements the OAuth 1.0a request-signing primitives
// (RFC 5849): signature base string construction, HMAC-SHA1 signing, and
// the Authorization header rendering the OAuth1 drivers attach to their
// request-token, access-token, and resource calls.
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Signer signs requests for one consumer key pair.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string

	// nonce and clock are overridable for deterministic tests.
	nonce func() string
	clock func() time.Time
}

// NewSigner builds a signer for the given consumer credentials.
func NewSigner(consumerKey, consumerSecret string) *Signer {
	return &Signer{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		nonce:          newNonce,
		clock:          time.Now,
	}
}

// Params returns the oauth_* protocol parameters plus a signature over the
// request. extra carries request-specific parameters that participate in the
// base string (query or form fields, oauth_callback, oauth_verifier).
// token/tokenSecret are empty for the request-token leg.
func (s *Signer) Params(method, rawURL string, extra url.Values, token, tokenSecret string) url.Values {
	oauth := url.Values{}
	oauth.Set("oauth_consumer_key", s.ConsumerKey)
	oauth.Set("oauth_nonce", s.nonce())
	oauth.Set("oauth_signature_method", "HMAC-SHA1")
	oauth.Set("oauth_timestamp", fmt.Sprintf("%d", s.clock().Unix()))
	oauth.Set("oauth_version", "1.0")
	if token != "" {
		oauth.Set("oauth_token", token)
	}

	sig := s.signature(method, rawURL, merged(oauth, extra), tokenSecret)
	oauth.Set("oauth_signature", sig)
	return oauth
}

// AuthorizationHeader renders signed oauth params as an OAuth Authorization
// header value.
func AuthorizationHeader(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", percentEncode(k), percentEncode(params.Get(k))))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// signature computes the HMAC-SHA1 signature per the OAuth1 base-string
// algorithm over (method, normalized URL, normalized parameters).
func (s *Signer) signature(method, rawURL string, params url.Values, tokenSecret string) string {
	base := BaseString(method, rawURL, params)
	key := percentEncode(s.ConsumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BaseString builds the signature base string: METHOD & encoded-URL &
// encoded-normalized-params. Query parameters already on rawURL participate
// in normalization; the fragment and default ports are dropped.
func BaseString(method, rawURL string, params url.Values) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		u = &url.URL{Path: rawURL}
	}

	all := url.Values{}
	for k, vs := range u.Query() {
		for _, v := range vs {
			all.Add(k, v)
		}
	}
	for k, vs := range params {
		if k == "oauth_signature" {
			continue
		}
		for _, v := range vs {
			all.Add(k, v)
		}
	}

	return strings.ToUpper(method) + "&" +
		percentEncode(normalizedURL(u)) + "&" +
		percentEncode(normalizedParams(all))
}

func normalizedURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return scheme + "://" + host + u.EscapedPath()
}

// normalizedParams percent-encodes each key and value, sorts pairs by
// encoded key (then value), and joins with & and =.
func normalizedParams(params url.Values) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

// percentEncode applies the strict RFC 3986 encoding OAuth1 requires:
// unreserved characters (ALPHA / DIGIT / "-" / "." / "_" / "~") pass
// through, everything else becomes %XX uppercase.
func percentEncode(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~' {
			sb.WriteByte(c)
		} else {
			sb.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return sb.String()
}

func merged(a, b url.Values) url.Values {
	out := url.Values{}
	for k, vs := range a {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	for k, vs := range b {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

func newNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
