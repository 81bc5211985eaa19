// Package session holds the per-request session context and the cookie rules
// shared by the proxy handlers and the auth guard.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bl4ckh401/chama/internal/model"
)

// CookieName is the default name of the HTTP-only session cookie.
const CookieName = "chama_session"

// MaxAge is the fixed session cookie lifetime.
const MaxAge = 7 * 24 * time.Hour

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// Context is the resolved session for one request or one client. It is
// constructed explicitly and handed to collaborators that need the token.
type Context struct {
	Token string
	User  *model.User
}

// Authenticated reports whether a token is present.
func (c *Context) Authenticated() bool {
	return c != nil && c.Token != ""
}

// Bearer returns the Authorization header value, or "" when there is no token.
func (c *Context) Bearer() string {
	if !c.Authenticated() {
		return ""
	}
	return "Bearer " + c.Token
}

type ctxKey struct{}

// WithContext returns a copy of ctx carrying s.
func WithContext(ctx context.Context, s *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by RequireSession, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Context)
	return s, ok && s.Authenticated()
}

// Cookies mints and reads session cookies.
type Cookies struct {
	Name   string
	Secure bool
}

// NewCookies returns cookie rules for the given name. Secure is set in production.
func NewCookies(name string, production bool) Cookies {
	if name == "" {
		name = CookieName
	}
	return Cookies{Name: name, Secure: production}
}

// New builds the session cookie carrying token.
func (c Cookies) New(token string) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(MaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// Clear builds a cookie that deletes the session cookie.
func (c Cookies) Clear() *http.Cookie {
	ck := c.New("")
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	return ck
}

// Token reads the session token from r.
func (c Cookies) Token(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.Name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

// Context builds the session context for r.
func (c Cookies) Context(r *http.Request) *Context {
	token, _ := c.Token(r)
	return &Context{Token: token}
}

// RequireSession guards next. Browser navigations without a session are
// redirected to the login page with the requested path as returnTo; other
// requests get a 401 JSON body. Authenticated requests carry the session in
// their context.
func (c Cookies) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := c.Context(r)
		if !s.Authenticated() {
			if wantsHTML(r) {
				http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), s)))
	})
}

// LoginURL returns the login location, preserving returnTo when non-empty.
func LoginURL(returnTo string) string {
	if returnTo == "" {
		return LoginPath
	}
	return LoginPath + "?returnTo=" + url.QueryEscape(returnTo)
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
