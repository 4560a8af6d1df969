// Package session defines the per-request session bag the provider drivers
// use to round-trip CSRF state and request tokens between the login and
// callback legs. The drivers only see the Session interface; the HTTP layer
// owns the cookie transport.
package session

import (
	"net/http"

	"github.com/gorilla/sessions"
)

// Session is the mutable string bag scoped to one login attempt.
type Session interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// Manager opens and persists sessions for incoming requests.
type Manager interface {
	// Open returns the request's session bag, creating it if absent.
	Open(r *http.Request) (Session, error)
	// Save persists any mutations made through the bag. Must be called
	// before the response body is written.
	Save(w http.ResponseWriter, r *http.Request, s Session) error
}

// CookieManager implements Manager over gorilla/sessions cookie storage.
type CookieManager struct {
	store *sessions.CookieStore
	name  string
}

// NewCookieManager builds a cookie-backed manager. The secret signs (and
// with a 32-byte value, encrypts) the cookie payload.
func NewCookieManager(secret []byte, cookieName string, secure bool) *CookieManager {
	cs := sessions.NewCookieStore(secret)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((30 * 60)), // one login attempt should finish well within 30m
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieManager{store: cs, name: cookieName}
}

func (m *CookieManager) Open(r *http.Request) (Session, error) {
	// Get never fails hard for a bad cookie; it hands back a fresh session,
	// which is what we want (a forged callback simply has no stored state).
	s, err := m.store.Get(r, m.name)
	if err != nil && s == nil {
		return nil, err
	}
	return &cookieSession{s: s}, nil
}

func (m *CookieManager) Save(w http.ResponseWriter, r *http.Request, s Session) error {
	cs, ok := s.(*cookieSession)
	if !ok {
		return nil
	}
	return cs.s.Save(r, w)
}

type cookieSession struct {
	s *sessions.Session
}

func (c *cookieSession) Get(key string) (string, bool) {
	v, ok := c.s.Values[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (c *cookieSession) Set(key, value string) {
	c.s.Values[key] = value
}

func (c *cookieSession) Delete(key string) {
	delete(c.s.Values, key)
}

// Mem is an in-memory Session for tests.
type Mem map[string]string

func (m Mem) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m Mem) Set(key, value string) { m[key] = value }

func (m Mem) Delete(key string) { delete(m, key) }
