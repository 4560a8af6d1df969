package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/session"
)

// testOAuth2 stands up fake token/profile endpoints and returns a driver
// pointed at them, plus call counters.
func testOAuth2(t *testing.T, tokenBody string, tokenStatus int, profileBody string) (*OAuth2Driver, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var tokenCalls, profileCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		w.WriteHeader(tokenStatus)
		w.Write([]byte(tokenBody))
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		profileCalls.Add(1)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(profileBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	d, err := NewOAuth2("acme", Settings{
		Key:         "client-id",
		Secret:      "client-secret",
		Scope:       "email",
		CallbackURL: "https://gateway.example/acme/process",
	}, OAuth2Endpoints{
		AuthURL:    srv.URL + "/authorize",
		TokenURL:   srv.URL + "/token",
		ProfileURL: srv.URL + "/me",
	}, normalizeFacebook)
	require.NoError(t, err)
	return d, &tokenCalls, &profileCalls
}

func callbackRequest(query url.Values) *http.Request {
	return httptest.NewRequest("GET", "https://gateway.example/acme/process?"+query.Encode(), nil)
}

func TestOAuth2FullCycle(t *testing.T) {
	profileJSON := `{
		"id": "12345",
		"name": "Ada Lovelace",
		"first_name": "Ada",
		"last_name": "Lovelace",
		"email": "ada@example.com",
		"verified": true,
		"link": "https://www.facebook.com/ada.lovelace"
	}`
	d, tokenCalls, profileCalls := testOAuth2(t,
		`{"access_token":"tok-123","refresh_token":"ref-456","expires_in":3600}`, 200, profileJSON)

	sess := session.Mem{}
	redirect, err := d.Login(context.Background(), httptest.NewRequest("GET", "/acme/login", nil), sess)
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "email", q.Get("scope"))
	state := q.Get("state")
	require.NotEmpty(t, state)

	out, err := d.Callback(context.Background(), callbackRequest(url.Values{
		"state": {state},
		"code":  {"the-code"},
	}), sess)
	require.NoError(t, err)
	require.NotNil(t, out.Complete)
	assert.Nil(t, out.Denied)

	c := out.Complete
	assert.Equal(t, "acme", c.Provider)
	assert.Equal(t, TypeOAuth2, c.ProviderType)
	assert.Equal(t, "tok-123", c.Credentials.AccessToken)
	assert.Equal(t, "ref-456", c.Credentials.RefreshToken)
	assert.Equal(t, 3600, c.Credentials.ExpiresIn)

	m := c.Profile.Map()
	assert.Equal(t, "Ada Lovelace", m["displayName"])
	assert.Equal(t, "ada@example.com", m["verifiedEmail"])
	assert.Equal(t, "ada.lovelace", m["preferredUsername"])

	assert.EqualValues(t, 1, tokenCalls.Load())
	assert.EqualValues(t, 1, profileCalls.Load())

	// state is consumed: replaying the same callback is a CSRF failure
	_, err = d.Callback(context.Background(), callbackRequest(url.Values{
		"state": {state},
		"code":  {"the-code"},
	}), sess)
	assert.ErrorIs(t, err, ErrCSRF)
}

func TestOAuth2CSRFMismatch(t *testing.T) {
	d, tokenCalls, profileCalls := testOAuth2(t, `{"access_token":"tok-123"}`, 200, `{}`)

	sess := session.Mem{}
	_, err := d.Login(context.Background(), httptest.NewRequest("GET", "/acme/login", nil), sess)
	require.NoError(t, err)

	_, err = d.Callback(context.Background(), callbackRequest(url.Values{
		"state": {"forged"},
		"code":  {"the-code"},
	}), sess)
	assert.ErrorIs(t, err, ErrCSRF)

	// no upstream call may happen on a CSRF failure
	assert.EqualValues(t, 0, tokenCalls.Load())
	assert.EqualValues(t, 0, profileCalls.Load())
}

func TestOAuth2CallbackWithoutLogin(t *testing.T) {
	d, tokenCalls, _ := testOAuth2(t, `{"access_token":"tok-123"}`, 200, `{}`)

	_, err := d.Callback(context.Background(), callbackRequest(url.Values{
		"state": {"anything"},
		"code":  {"the-code"},
	}), session.Mem{})
	assert.ErrorIs(t, err, ErrCSRF)
	assert.EqualValues(t, 0, tokenCalls.Load())
}

func TestOAuth2DenialWinsOverBadState(t *testing.T) {
	d, tokenCalls, _ := testOAuth2(t, `{"access_token":"tok-123"}`, 200, `{}`)

	// explicit provider denial, even alongside a wrong state, is a denial
	out, err := d.Callback(context.Background(), callbackRequest(url.Values{
		"error":             {"access_denied"},
		"error_description": {"the user said no"},
		"state":             {"forged"},
	}), session.Mem{})
	require.NoError(t, err)
	require.NotNil(t, out.Denied)
	assert.Equal(t, "access_denied", out.Denied.Reason)
	assert.Equal(t, "the user said no", out.Denied.Description)
	assert.EqualValues(t, 0, tokenCalls.Load())
}

func TestOAuth2MissingCodeIsDenial(t *testing.T) {
	d, _, _ := testOAuth2(t, `{"access_token":"tok-123"}`, 200, `{}`)

	sess := session.Mem{}
	redirect, err := d.Login(context.Background(), httptest.NewRequest("GET", "/acme/login", nil), sess)
	require.NoError(t, err)
	u, _ := url.Parse(redirect)

	out, err := d.Callback(context.Background(), callbackRequest(url.Values{
		"state": {u.Query().Get("state")},
	}), sess)
	require.NoError(t, err)
	require.NotNil(t, out.Denied)
	assert.Equal(t, "no_code", out.Denied.Reason)
}

func TestOAuth2ExchangeFailureCarriesUpstream(t *testing.T) {
	d, _, profileCalls := testOAuth2(t, `{"error":"invalid_grant"}`, 400, `{}`)

	sess := session.Mem{}
	redirect, err := d.Login(context.Background(), httptest.NewRequest("GET", "/acme/login", nil), sess)
	require.NoError(t, err)
	u, _ := url.Parse(redirect)

	_, err = d.Callback(context.Background(), callbackRequest(url.Values{
		"state": {u.Query().Get("state")},
		"code":  {"stale-code"},
	}), sess)

	var tpf *ThirdPartyFailure
	require.ErrorAs(t, err, &tpf)
	assert.Equal(t, "acme", tpf.Provider)
	assert.Equal(t, "exchange", tpf.Op)
	assert.Equal(t, 400, tpf.Status)
	assert.Contains(t, tpf.Body, "invalid_grant")

	// the profile endpoint must never be touched after a failed exchange
	assert.EqualValues(t, 0, profileCalls.Load())
}

func TestParseTokenBodyFormEncoded(t *testing.T) {
	tok, err := parseTokenBody([]byte("access_token=tok-xyz&expires=5183999"))
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", tok.AccessToken)
	assert.Equal(t, 5183999, tok.ExpiresIn)
}

func TestParseTokenBodyJSON(t *testing.T) {
	body, _ := json.Marshal(TokenResponse{AccessToken: "a", RefreshToken: "r", ExpiresIn: 10})
	tok, err := parseTokenBody(body)
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
	assert.Equal(t, 10, tok.ExpiresIn)
}

func TestOAuth2AuthURLMergesExistingQuery(t *testing.T) {
	got := URLWithQuery("https://provider.example/auth?tenant=abc", url.Values{"client_id": {"x"}})
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "abc", u.Query().Get("tenant"))
	assert.Equal(t, "x", u.Query().Get("client_id"))
	assert.True(t, strings.HasPrefix(got, "https://provider.example/auth?"))
}
