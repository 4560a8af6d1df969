package delivery

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authgate/internal/profile"
	"github.com/dropDatabas3/authgate/internal/provider"
	"github.com/dropDatabas3/authgate/internal/store"
)

func newDeliverer(t *testing.T) (*Deliverer, store.Store) {
	t.Helper()
	st, err := store.New(context.Background(), store.Config{Driver: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, "https://app.example/auth/complete", 0), st
}

// pulls the hidden token field out of the rendered form
func tokenFromForm(t *testing.T, html string) string {
	t.Helper()
	const marker = `name="token" value="`
	i := strings.Index(html, marker)
	require.GreaterOrEqual(t, i, 0, "no token field in form")
	rest := html[i+len(marker):]
	return rest[:strings.Index(rest, `"`)]
}

func TestDeliverComplete(t *testing.T) {
	d, _ := newDeliverer(t)

	out := &provider.Outcome{Complete: &provider.Complete{
		Profile: &profile.Profile{
			Accounts:    []profile.Account{{Domain: "facebook.com", UserID: "1"}},
			DisplayName: "Homer Simpson",
		},
		Credentials:  provider.Credentials{AccessToken: "tok123"},
		Provider:     "facebook",
		ProviderType: provider.TypeOAuth2,
	}}

	rec := httptest.NewRecorder()
	require.NoError(t, d.Deliver(context.Background(), rec, out))

	html := rec.Body.String()
	assert.Contains(t, html, `action="https://app.example/auth/complete"`)
	assert.Contains(t, html, `method="post"`)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	tok := tokenFromForm(t, html)
	require.NotEmpty(t, tok)

	body, err := d.Fetch(context.Background(), tok)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "facebook", payload["provider"])

	prof := payload["profile"].(map[string]any)
	assert.Equal(t, "Homer Simpson", prof["displayName"])

	creds := payload["credentials"].(map[string]any)
	assert.Equal(t, "tok123", creds["oauthAccessToken"])
	// empty credential fields must not leak into the payload
	_, hasSecret := creds["oauthAccessTokenSecret"]
	assert.False(t, hasSecret)
}

func TestDeliverDenial(t *testing.T) {
	d, _ := newDeliverer(t)

	out := &provider.Outcome{Denied: &provider.Denial{
		Reason:      "access_denied",
		Description: "the user said no",
		Provider:    "github",
	}}

	rec := httptest.NewRecorder()
	require.NoError(t, d.Deliver(context.Background(), rec, out))

	body, err := d.Fetch(context.Background(), tokenFromForm(t, rec.Body.String()))
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "access_denied", payload["code"])
	assert.Equal(t, "the user said no", payload["description"])
	_, hasProfile := payload["profile"]
	assert.False(t, hasProfile)
}

func TestFetchUnknownToken(t *testing.T) {
	d, _ := newDeliverer(t)
	_, err := d.Fetch(context.Background(), "nope")
	assert.True(t, store.IsNotFound(err))
}

func TestDeliverTokensAreUnique(t *testing.T) {
	d, _ := newDeliverer(t)
	out := &provider.Outcome{Denied: &provider.Denial{Reason: "x"}}

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		require.NoError(t, d.Deliver(context.Background(), rec, out))
		tok := tokenFromForm(t, rec.Body.String())
		require.False(t, seen[tok], "token reuse")
		seen[tok] = true
	}
}

func TestStagedPayloadExpires(t *testing.T) {
	st, err := store.New(context.Background(), store.Config{Driver: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	d := New(st, "https://app.example/cb", 30*time.Millisecond)
	rec := httptest.NewRecorder()
	require.NoError(t, d.Deliver(context.Background(), rec, &provider.Outcome{
		Denied: &provider.Denial{Reason: "x"},
	}))
	tok := tokenFromForm(t, rec.Body.String())

	_, err = d.Fetch(context.Background(), tok)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = d.Fetch(context.Background(), tok)
	assert.True(t, store.IsNotFound(err))
}
