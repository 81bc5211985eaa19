package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/juju/errors"

	"github.com/bl4ckh401/chama/internal/authproxy"
	"github.com/bl4ckh401/chama/internal/session"
	"github.com/bl4ckh401/chama/internal/upstream"
)

// newStack wires a fake backend behind a real proxy.
func newStack(t *testing.T) *httptest.Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			var creds Credentials
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"token":"tok-1","user":{"id":"u1","username":"` + creds.Username + `","chamaId":"c1"}}`))
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"id":"u1","username":"amina","chamaId":"c1"}`))
		case "/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		case "/auth/forgot-password":
			_, _ = w.Write([]byte(`{"message":"Check your inbox"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	proxy := authproxy.New(authproxy.Config{
		Upstream: upstream.NewClient(backend.URL, 0),
		Cookies:  session.NewCookies(session.CookieName, false),
	})
	srv := httptest.NewServer(proxy.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginPersistsAcrossClients(t *testing.T) {
	srv := newStack(t)
	jarPath := filepath.Join(t.TempDir(), "cookies")
	ctx := context.Background()

	c, err := New(srv.URL, jarPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, Credentials{Username: "amina", Password: "wrong"}); !errors.Is(err, errors.Unauthorized) {
		t.Fatalf("bad password: %v", err)
	}
	res, err := c.Login(ctx, Credentials{Username: "amina", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Message != "Login successful" || res.User.Username != "amina" {
		t.Errorf("result = %+v", res)
	}

	// A second client on the same jar file is already signed in.
	c2, err := New(srv.URL, jarPath)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := c2.Token(ctx)
	if err != nil || tok != "tok-1" {
		t.Fatalf("Token = %q, %v", tok, err)
	}
	user, err := c2.Session(ctx)
	if err != nil || user == nil || user.ChamaID != "c1" {
		t.Fatalf("Session = %+v, %v", user, err)
	}

	if err := c2.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	c3, err := New(srv.URL, jarPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c3.Token(ctx); !errors.Is(err, errors.Unauthorized) {
		t.Errorf("Token after logout = %v, want Unauthorized", err)
	}
	user, err = c3.Session(ctx)
	if err != nil || user != nil {
		t.Errorf("Session after logout = %+v, %v", user, err)
	}
}

func TestForgotPasswordMessage(t *testing.T) {
	srv := newStack(t)
	c, err := New(srv.URL, filepath.Join(t.TempDir(), "cookies"))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := c.ForgotPassword(context.Background(), "a@b.c")
	if err != nil || msg != "Check your inbox" {
		t.Errorf("ForgotPassword = %q, %v", msg, err)
	}
}
