package authproxy

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bl4ckh401/chama/internal/upstream"
)

const (
	msgInvalidResponse  = "Invalid response from server"
	msgInternal         = "Internal server error"
	msgNotAuthenticated = "Not authenticated"
)

// authResponse is the body returned after login or registration. The user
// record is relayed as the backend sent it.
type authResponse struct {
	User    json.RawMessage `json:"user"`
	Token   string          `json:"token"`
	Message string          `json:"message"`
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, "login", "/auth/login", "Login successful", "Login failed")
}

func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, "register", "/auth/register", "Registration successful", "Registration failed")
}

func (s *Service) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	s.passthrough(w, r, "forgot_password", "/auth/forgot-password", "Failed to send reset email", "")
}

func (s *Service) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	s.passthrough(w, r, "reset_password", "/auth/reset-password", "Failed to reset password", "")
}

func (s *Service) handleVerify2FA(w http.ResponseWriter, r *http.Request) {
	token, _ := s.cfg.Cookies.Token(r)
	s.passthrough(w, r, "verify_2fa", "/auth/2fa/verify", "Verification failed", token)
}

// authenticate forwards credentials and, when the backend answers with a
// token and a user, mints the session cookie.
func (s *Service) authenticate(w http.ResponseWriter, r *http.Request, route, path, okMsg, failMsg string) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}

	resp, err := s.forward(r.Context(), route, s.cfg.Upstream, path, body)
	if err != nil {
		s.internalError(w, r, route, err)
		return
	}
	if !resp.OK() {
		writeMessage(w, resp.StatusCode, upstream.MessageFrom(resp.Body, failMsg))
		return
	}

	// A token of any type other than string counts as missing.
	var raw struct {
		User  json.RawMessage `json:"user"`
		Token json.RawMessage `json:"token"`
	}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		s.log.Warn("unparseable upstream response",
			zap.String("request_id", upstream.RequestID(r.Context())),
			zap.String("route", route),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, msgInvalidResponse)
		return
	}
	out := authResponse{User: raw.User}
	_ = json.Unmarshal(raw.Token, &out.Token)
	if out.Token == "" || len(out.User) == 0 || string(out.User) == "null" {
		s.log.Warn("upstream answered without token or user",
			zap.String("request_id", upstream.RequestID(r.Context())),
			zap.String("route", route),
		)
		writeMessage(w, http.StatusInternalServerError, msgInvalidResponse)
		return
	}

	out.Message = okMsg
	http.SetCookie(w, s.cfg.Cookies.New(out.Token))
	writeJSON(w, http.StatusOK, out)
}

// passthrough forwards body and relays the backend's success body
// verbatim. Failures keep the status and carry only a message.
func (s *Service) passthrough(w http.ResponseWriter, r *http.Request, route, path, failMsg, token string) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return
	}

	client := s.cfg.Upstream
	if token != "" {
		client = client.WithToken(token)
	}
	resp, err := s.forward(r.Context(), route, client, path, body)
	if err != nil {
		s.internalError(w, r, route, err)
		return
	}
	if !resp.OK() {
		writeMessage(w, resp.StatusCode, upstream.MessageFrom(resp.Body, failMsg))
		return
	}
	writeRaw(w, resp.StatusCode, resp.Body)
}

func (s *Service) handleToken(w http.ResponseWriter, r *http.Request) {
	token, ok := s.cfg.Cookies.Token(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleSession resolves the cookie into the backend's view of the user.
// A token the backend no longer accepts clears the cookie.
func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	token, ok := s.cfg.Cookies.Token(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}

	timer := prometheus.NewTimer(s.metrics.upstream.WithLabelValues("session"))
	user, err := s.cfg.Upstream.WithToken(token).Me(r.Context())
	timer.ObserveDuration()

	var ue *upstream.Error
	switch {
	case errors.Is(err, errors.Unauthorized):
		http.SetCookie(w, s.cfg.Cookies.Clear())
		writeMessage(w, http.StatusUnauthorized, "Session expired")
	case errors.As(err, &ue):
		writeMessage(w, ue.StatusCode, ue.Message)
	case err != nil:
		s.internalError(w, r, "session", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	}
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := s.cfg.Cookies.Token(r); ok {
		timer := prometheus.NewTimer(s.metrics.upstream.WithLabelValues("logout"))
		err := s.cfg.Upstream.WithToken(token).Logout(r.Context())
		timer.ObserveDuration()
		if err != nil {
			s.log.Warn("upstream logout failed",
				zap.String("request_id", upstream.RequestID(r.Context())),
				zap.Error(err),
			)
		}
	}
	http.SetCookie(w, s.cfg.Cookies.Clear())
	writeMessage(w, http.StatusOK, "Logged out")
}

// forward makes exactly one upstream call and records its latency.
func (s *Service) forward(ctx context.Context, route string, client *upstream.Client, path string, body []byte) (*upstream.Response, error) {
	timer := prometheus.NewTimer(s.metrics.upstream.WithLabelValues(route))
	defer timer.ObserveDuration()
	return client.Forward(ctx, path, body)
}

func (s *Service) internalError(w http.ResponseWriter, r *http.Request, route string, err error) {
	s.log.Error("proxy failure",
		zap.String("request_id", upstream.RequestID(r.Context())),
		zap.String("route", route),
		zap.Error(err),
	)
	msg := err.Error()
	if msg == "" {
		msg = msgInternal
	}
	writeMessage(w, http.StatusInternalServerError, msg)
}
