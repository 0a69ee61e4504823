// Package session keeps the console's cookie sessions in Redis. A session binds the
// browser to the billing API token it signed in with.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Manager orchestrates cookie based sessions backed by Redis.
type Manager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session holds per-request session data.
type Session struct {
	ID        string
	replaced  string
	token     string
	principal Principal
	isNew     bool
	dirty     bool
	destroyed bool
}

type payload struct {
	Token     string    `json:"token"`
	Principal Principal `json:"principal"`
}

// NewManager constructs a Manager.
func NewManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{client: client, cookieName: cookieName, ttl: ttl, secure: secure}
}

// Load returns the session named by the request cookie, or a fresh unsaved one.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return m.newSession(), nil
		}
		return nil, err
	}

	raw, err := m.client.Get(ctx, m.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return m.newSession(), nil
		}
		return nil, err
	}

	var stored payload
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	return &Session{ID: cookie.Value, token: stored.Token, principal: stored.Principal}, nil
}

// Commit persists an authenticated session and writes the cookie. Anonymous sessions are
// never stored.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.destroyed {
		if err := m.client.Del(ctx, m.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, m.cookie("", -1))
		return nil
	}
	if !sess.Authenticated() {
		return nil
	}
	if sess.replaced != "" {
		if err := m.client.Del(ctx, m.redisKey(sess.replaced)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		sess.replaced = ""
	}
	if sess.dirty {
		data, err := json.Marshal(payload{Token: sess.token, Principal: sess.principal})
		if err != nil {
			return err
		}
		if err := m.client.Set(ctx, m.redisKey(sess.ID), data, m.lifetime(sess)).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}
	if sess.isNew {
		http.SetCookie(w, m.cookie(sess.ID, int(m.lifetime(sess).Seconds())))
		sess.isNew = false
	}
	return nil
}

// Destroy marks the session for deletion on commit.
func (m *Manager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// lifetime caps the session TTL at the token expiry.
func (m *Manager) lifetime(sess *Session) time.Duration {
	ttl := m.ttl
	if exp := sess.principal.ExpiresAt; !exp.IsZero() {
		if until := time.Until(exp); until < ttl {
			ttl = until
		}
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (m *Manager) newSession() *Session {
	return &Session{ID: uuid.NewString(), isNew: true}
}

func (m *Manager) redisKey(id string) string {
	return "console:session:" + id
}

// SignIn binds the session to a billing API token. A fresh ID is issued so a pre-login
// cookie can never be reused.
func (s *Session) SignIn(token string, p Principal) {
	if !s.isNew {
		s.replaced = s.ID
		s.ID = uuid.NewString()
		s.isNew = true
	}
	s.token = token
	s.principal = p
	s.dirty = true
}

// Authenticated reports whether the session carries a token.
func (s *Session) Authenticated() bool {
	return s != nil && s.token != "" && !s.destroyed
}

// Token returns the billing API bearer token.
func (s *Session) Token() string {
	return s.token
}

// Principal returns the signed-in identity.
func (s *Session) Principal() Principal {
	return s.principal
}
