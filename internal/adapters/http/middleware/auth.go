package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"bulksms/internal/adapters/tabular"
	"bulksms/internal/domain/sms"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionContextKey contextKey = "session"

// DefaultSessionTTL is how long a session lives after login.
const DefaultSessionTTL = 24 * time.Hour

const nonceSize = 24

// ErrSessionNotFound is returned for unknown or expired tokens.
var ErrSessionNotFound = errors.New("session not found")

// SecureCookies marks the session cookie Secure. Set in production.
var SecureCookies bool

// Session is one operator's workspace. The provider password is held sealed and only
// opened by SessionStore.Credentials.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	Upload    *tabular.Table    // last uploaded table, nil before the first upload
	Pairs     []sms.MessagePair // last generated messages
	sealed    []byte            // nonce || secretbox(password)
}

// HasPairs reports whether generated messages are waiting to be sent.
func (s Session) HasPairs() bool {
	return len(s.Pairs) > 0
}

// SessionStore is an in-memory session store. Each login gets its own workspace.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	key      [32]byte
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store whose sessions expire after ttl.
// PRE: none; non-positive ttl selects DefaultSessionTTL
// POST: Returns a store with a fresh sealing key
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	ss := &SessionStore{sessions: make(map[string]*Session), ttl: ttl, now: time.Now}
	rand.Read(ss.key[:])
	return ss
}

// TTL returns the session lifetime.
func (ss *SessionStore) TTL() time.Duration {
	return ss.ttl
}

// Create stores a new session for creds and returns its token. Expired sessions are swept.
// PRE: creds.Username is non-empty
// POST: Session is stored with the password sealed, token is returned
func (ss *SessionStore) Create(creds sms.Credentials) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(creds.Password), &nonce, &ss.key)

	now := ss.now()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for t, s := range ss.sessions {
		if now.Sub(s.CreatedAt) > ss.ttl {
			delete(ss.sessions, t)
		}
	}
	ss.sessions[token] = &Session{Token: token, Username: creds.Username, CreatedAt: now, sealed: sealed}
	return token, nil
}

// Get returns a copy of the session for token.
// PRE: none
// POST: Returns false for unknown or expired tokens; expired sessions are removed
func (ss *SessionStore) Get(token string) (Session, bool) {
	ss.mu.RLock()
	s, ok := ss.sessions[token]
	ss.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if ss.now().Sub(s.CreatedAt) > ss.ttl {
		ss.Delete(token)
		return Session{}, false
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return *s, true
}

// Delete removes a session by token.
// POST: Session with given token is removed
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// Credentials opens the sealed password of a session.
// PRE: token names a live session
// POST: Returns ErrSessionNotFound for unknown tokens
func (ss *SessionStore) Credentials(token string) (sms.Credentials, error) {
	ss.mu.RLock()
	s, ok := ss.sessions[token]
	var username string
	var sealed []byte
	if ok {
		username, sealed = s.Username, s.sealed
	}
	ss.mu.RUnlock()
	if !ok || len(sealed) < nonceSize {
		return sms.Credentials{}, ErrSessionNotFound
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	password, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &ss.key)
	if !ok {
		return sms.Credentials{}, errors.New("session credentials could not be opened")
	}
	return sms.Credentials{Username: username, Password: string(password)}, nil
}

// SetUpload replaces the session's uploaded table and discards pairs generated from the previous one.
// POST: Returns false if the session does not exist
func (ss *SessionStore) SetUpload(token string, t *tabular.Table) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.sessions[token]
	if !ok {
		return false
	}
	s.Upload = t
	s.Pairs = nil
	return true
}

// SetPairs replaces the session's generated messages. Previous pairs are never merged.
// POST: Returns false if the session does not exist
func (ss *SessionStore) SetPairs(token string, pairs []sms.MessagePair) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.sessions[token]
	if !ok {
		return false
	}
	s.Pairs = pairs
	return true
}

// Len returns the number of stored sessions, expired or not.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

const sessionCookieName = "bulksms_session"

// Auth returns middleware that extracts the session from the cookie and sets it in context.
// It does NOT block unauthenticated requests; use RequireAuth for that.
func Auth(sessions *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err == nil && cookie.Value != "" {
				if session, ok := sessions.Get(cookie.Value); ok {
					r = r.WithContext(ContextWithSession(r.Context(), session))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns middleware that redirects unauthenticated requests to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetSessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(Session)
	return session, ok
}

// ContextWithSession returns a context with the given session set.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SetSessionCookie sets the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

// SessionToken returns the session token carried by the request cookie, if any.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
