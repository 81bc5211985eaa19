// Package upstream is a client for the chama backend API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"

	"github.com/bl4ckh401/chama/internal/model"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	userAgent      = "chama/1.0"
)

// Client calls the backend API. A Client without a token can only reach
// the public auth endpoints; use WithToken for everything else.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a client rooted at baseURL (for example
// "https://api.example.com/api"). A zero timeout means 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
	}
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Response is a raw upstream answer.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Forward POSTs body to path unmodified and returns whatever the backend
// answered. Non-2xx statuses are not errors here; only transport and read
// failures are.
func (c *Client) Forward(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.getJSON(ctx, "/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout tells the backend to revoke the token.
func (c *Client) Logout(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Chama returns the group header.
func (c *Client) Chama(ctx context.Context, chamaID string) (*model.ChamaData, error) {
	var d model.ChamaData
	if err := c.getJSON(ctx, chamaPath(chamaID, ""), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Members lists the group's members.
func (c *Client) Members(ctx context.Context, chamaID string) ([]model.Member, error) {
	var out []model.Member
	if err := c.getJSON(ctx, chamaPath(chamaID, "/members"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transactions lists ledger movements.
func (c *Client) Transactions(ctx context.Context, chamaID string) ([]model.Transaction, error) {
	var out []model.Transaction
	if err := c.getJSON(ctx, chamaPath(chamaID, "/transactions"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Loans lists loans.
func (c *Client) Loans(ctx context.Context, chamaID string) ([]model.Loan, error) {
	var out []model.Loan
	if err := c.getJSON(ctx, chamaPath(chamaID, "/loans"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Expenses lists group expenses.
func (c *Client) Expenses(ctx context.Context, chamaID string) ([]model.Expense, error) {
	var out []model.Expense
	if err := c.getJSON(ctx, chamaPath(chamaID, "/expenses"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fines lists fines levied on members.
func (c *Client) Fines(ctx context.Context, chamaID string) ([]model.Fine, error) {
	var out []model.Fine
	if err := c.getJSON(ctx, chamaPath(chamaID, "/fines"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SettingsChanges lists governance proposals. Each payload is validated
// while decoding; one malformed proposal fails the whole call.
func (c *Client) SettingsChanges(ctx context.Context, chamaID string) ([]model.SettingsChange, error) {
	var out []model.SettingsChange
	if err := c.getJSON(ctx, chamaPath(chamaID, "/settings-changes"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// VoteSettingsChange approves or rejects a proposal.
func (c *Client) VoteSettingsChange(ctx context.Context, chamaID, changeID string, vote model.VoteRequest) error {
	if err := vote.Validate(); err != nil {
		return errors.Trace(err)
	}
	path := chamaPath(chamaID, "/settings-changes/"+url.PathEscape(changeID)+"/vote")
	return c.sendJSON(ctx, http.MethodPost, path, vote, nil)
}

// Documents lists the group's documents.
func (c *Client) Documents(ctx context.Context, chamaID string) ([]model.Document, error) {
	var out []model.Document
	if err := c.getJSON(ctx, chamaPath(chamaID, "/documents"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDocument validates and submits doc, returning the stored record.
func (c *Client) CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	if err := doc.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	var out model.Document
	if err := c.sendJSON(ctx, http.MethodPost, chamaPath(doc.ChamaID, "/documents"), doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, chamaID, docID string) error {
	return c.sendJSON(ctx, http.MethodDelete, chamaPath(chamaID, "/documents/"+url.PathEscape(docID)), nil, nil)
}

// Policies lists the group's written rules.
func (c *Client) Policies(ctx context.Context, chamaID string) ([]model.Policy, error) {
	var out []model.Policy
	if err := c.getJSON(ctx, chamaPath(chamaID, "/policies"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePolicy validates and submits p, returning the stored record.
func (c *Client) CreatePolicy(ctx context.Context, p model.Policy) (*model.Policy, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	var out model.Policy
	if err := c.sendJSON(ctx, http.MethodPost, chamaPath(p.ChamaID, "/policies"), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePolicy removes a policy.
func (c *Client) DeletePolicy(ctx context.Context, chamaID, policyID string) error {
	return c.sendJSON(ctx, http.MethodDelete, chamaPath(chamaID, "/policies/"+url.PathEscape(policyID)), nil, nil)
}

// RequestClosure starts the closure vote for a group.
func (c *Client) RequestClosure(ctx context.Context, req model.ClosureRequest) error {
	if err := req.Validate(); err != nil {
		return errors.Trace(err)
	}
	return c.sendJSON(ctx, http.MethodPost, chamaPath(req.ChamaID, "/closure"), req, nil)
}

func chamaPath(chamaID, suffix string) string {
	return "/chamas/" + url.PathEscape(chamaID) + suffix
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	return c.sendJSON(ctx, http.MethodGet, path, nil, v)
}

// sendJSON performs a request and decodes a 2xx body into out (if non-nil).
// Non-2xx answers become *Error.
func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Annotate(err, "upstream: encoding request")
		}
		body = b
	}

	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return newError(resp.StatusCode, resp.Body)
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := decodeData(resp.Body, out); err != nil {
		return errors.Annotatef(err, "upstream: parsing %s", path)
	}
	return nil
}

// decodeData accepts both bare bodies and the {"data": ...} envelope.
func decodeData(body []byte, v any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(body, &env) == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		body = env.Data
	}
	return json.Unmarshal(body, v)
}

// do performs one request and returns the status and body. There is no retry.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, errors.Annotate(err, "upstream: creating request")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	//nolint:gosec // URL is built from the configured base URL
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Annotate(err, "upstream: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Annotate(err, "upstream: reading response")
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

type requestIDKey struct{}

// WithRequestID tags ctx so outbound calls carry the same X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
