package provider

import (
	"context"
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

func testOAuth1(t *testing.T) (*OAuth1Driver, *atomic.Int32) {
	t.Helper()
	var accessCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/request_token", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth "))
		w.Write([]byte("oauth_token=req-tok&oauth_token_secret=req-sec&oauth_callback_confirmed=true"))
	})
	mux.HandleFunc("/access_token", func(w http.ResponseWriter, r *http.Request) {
		accessCalls.Add(1)
		auth := r.Header.Get("Authorization")
		assert.Contains(t, auth, `oauth_token="req-tok"`)
		assert.Contains(t, auth, `oauth_verifier="the-verifier"`)
		w.Write([]byte("oauth_token=acc-tok&oauth_token_secret=acc-sec"))
	})
	mux.HandleFunc("/profile.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), `oauth_token="acc-tok"`)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id_str":"9001","screen_name":"ada","name":"Ada Lovelace"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	d, err := NewOAuth1("birdsite", Settings{
		Key:         "consumer-key",
		Secret:      "consumer-secret",
		CallbackURL: "https://gateway.example/birdsite/process",
	}, OAuth1Endpoints{
		RequestTokenURL: srv.URL + "/request_token",
		AuthorizeURL:    srv.URL + "/authorize",
		AccessTokenURL:  srv.URL + "/access_token",
		ProfileURL:      srv.URL + "/profile.json",
	}, normalizeTwitter)
	require.NoError(t, err)
	return d, &accessCalls
}

func TestOAuth1FullCycle(t *testing.T) {
	d, _ := testOAuth1(t)

	sess := session.Mem{}
	redirect, err := d.Login(context.Background(), httptest.NewRequest("GET", "/birdsite/login", nil), sess)
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "req-tok", u.Query().Get("oauth_token"))

	cb := httptest.NewRequest("GET",
		"https://gateway.example/birdsite/process?oauth_token=req-tok&oauth_verifier=the-verifier", nil)
	out, err := d.Callback(context.Background(), cb, sess)
	require.NoError(t, err)
	require.NotNil(t, out.Complete)

	c := out.Complete
	assert.Equal(t, "acc-tok", c.Credentials.AccessToken)
	assert.Equal(t, "acc-sec", c.Credentials.AccessTokenSecret)
	assert.Equal(t, TypeOAuth1, c.ProviderType)

	m := c.Profile.Map()
	assert.Equal(t, "Ada Lovelace", m["displayName"])
	assert.Equal(t, "ada", m["preferredUsername"])
}

func TestOAuth1TokenBinding(t *testing.T) {
	d, accessCalls := testOAuth1(t)

	sess := session.Mem{}
	_, err := d.Login(context.Background(), httptest.NewRequest("GET", "/birdsite/login", nil), sess)
	require.NoError(t, err)

	// callback token does not match the stored request token
	cb := httptest.NewRequest("GET",
		"https://gateway.example/birdsite/process?oauth_token=someone-elses&oauth_verifier=v", nil)
	_, err = d.Callback(context.Background(), cb, sess)
	assert.ErrorIs(t, err, ErrCSRF)
	assert.EqualValues(t, 0, accessCalls.Load())
}

func TestOAuth1DeniedParam(t *testing.T) {
	d, accessCalls := testOAuth1(t)

	cb := httptest.NewRequest("GET",
		"https://gateway.example/birdsite/process?denied=req-tok", nil)
	out, err := d.Callback(context.Background(), cb, session.Mem{})
	require.NoError(t, err)
	require.NotNil(t, out.Denied)
	assert.Equal(t, "denied", out.Denied.Reason)
	assert.EqualValues(t, 0, accessCalls.Load())
}

func TestOAuth1MissingVerifierIsDenial(t *testing.T) {
	d, _ := testOAuth1(t)

	sess := session.Mem{}
	_, err := d.Login(context.Background(), httptest.NewRequest("GET", "/birdsite/login", nil), sess)
	require.NoError(t, err)

	cb := httptest.NewRequest("GET",
		"https://gateway.example/birdsite/process?oauth_token=req-tok", nil)
	out, err := d.Callback(context.Background(), cb, sess)
	require.NoError(t, err)
	require.NotNil(t, out.Denied)
	assert.Equal(t, "no_verifier", out.Denied.Reason)
}

func TestOAuth1RequestTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid consumer key"))
	}))
	t.Cleanup(srv.Close)

	d, err := NewOAuth1("birdsite", Settings{
		Key: "k", Secret: "s", CallbackURL: "https://gateway.example/cb",
	}, OAuth1Endpoints{RequestTokenURL: srv.URL}, normalizeTwitter)
	require.NoError(t, err)

	_, err = d.Login(context.Background(), httptest.NewRequest("GET", "/login", nil), session.Mem{})
	var tpf *ThirdPartyFailure
	require.ErrorAs(t, err, &tpf)
	assert.Equal(t, 401, tpf.Status)
	assert.Contains(t, tpf.Body, "invalid consumer key")
	assert.Equal(t, "request_token", tpf.Op)
}
