// Package portal is the CLI's client for the chama proxy. Session cookies
// are kept in a persistent jar so every command shares one login.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/juju/errors"
	cookiejar "github.com/juju/persistent-cookiejar"

	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/upstream"
)

const (
	requestTimeout = 15 * time.Second
	maxBodySize    = 1 << 20
)

// Client talks to the proxy's /api routes.
type Client struct {
	baseURL string
	jar     *cookiejar.Jar
	http    *http.Client
}

// New opens the cookie jar at jarPath and returns a client for baseURL.
func New(baseURL, jarPath string) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{Filename: jarPath})
	if err != nil {
		return nil, errors.Annotate(err, "opening cookie jar")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		jar:     jar,
		http:    &http.Client{Jar: jar},
	}, nil
}

// Close saves the cookie jar.
func (c *Client) Close() error {
	if err := c.jar.Save(); err != nil {
		return errors.Annotate(err, "cannot save cookie jar")
	}
	return nil
}

// Credentials is the login body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the register body.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// PasswordReset is the reset-password body.
type PasswordReset struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

// AuthResult is what login and register return.
type AuthResult struct {
	model.Session
	Message string `json:"message"`
}

// Login signs in and stores the session cookie.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	var out AuthResult
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", creds, &out); err != nil {
		return nil, err
	}
	return &out, c.Close()
}

// Register creates an account and stores the session cookie.
func (c *Client) Register(ctx context.Context, reg Registration) (*AuthResult, error) {
	var out AuthResult
	if err := c.call(ctx, http.MethodPost, "/api/auth/register", reg, &out); err != nil {
		return nil, err
	}
	return &out, c.Close()
}

// ForgotPassword asks for a reset email and returns the server's message.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": email}, &out)
	return out.Message, err
}

// ResetPassword sets a new password with an emailed token.
func (c *Client) ResetPassword(ctx context.Context, req PasswordReset) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/reset-password", req, &out)
	return out.Message, err
}

// VerifyTwoFactor submits a one-time code for the current session.
func (c *Client) VerifyTwoFactor(ctx context.Context, code string) error {
	return c.call(ctx, http.MethodPost, "/api/auth/2fa/verify", map[string]string{"code": code}, nil)
}

// Token returns the session token for direct backend calls. Without a
// session the error satisfies errors.Unauthorized.
func (c *Client) Token(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/auth/token", nil, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// Session resolves the current user. It returns (nil, nil) when there is
// no session.
func (c *Client) Session(ctx context.Context) (*model.User, error) {
	var out struct {
		User *model.User `json:"user"`
	}
	err := c.call(ctx, http.MethodGet, "/api/auth/session", nil, &out)
	if errors.Is(err, errors.Unauthorized) {
		return nil, c.Close()
	}
	if err != nil {
		return nil, err
	}
	return out.User, nil
}

// Logout ends the session and forgets the cookie locally.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/api/auth/logout", struct{}{}, nil)
	c.jar.RemoveAll()
	if saveErr := c.Close(); err == nil {
		err = saveErr
	}
	return err
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Trace(err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Annotate(err, "portal: creating request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Annotate(err, "portal: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Annotate(err, "portal: reading response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &upstream.Error{
			StatusCode: resp.StatusCode,
			Message:    upstream.MessageFrom(data, http.StatusText(resp.StatusCode)),
		}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return errors.Annotatef(json.Unmarshal(data, out), "portal: parsing %s", path)
}
