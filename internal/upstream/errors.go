package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/juju/errors"
)

// Error is a non-2xx answer from the backend API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream: %d %s", e.StatusCode, e.Message)
}

// Is maps HTTP status classes onto the juju/errors kinds so callers can
// branch with errors.Is(err, errors.Unauthorized) and friends.
func (e *Error) Is(target error) bool {
	switch target {
	case errors.Unauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case errors.Forbidden:
		return e.StatusCode == http.StatusForbidden
	case errors.NotFound:
		return e.StatusCode == http.StatusNotFound
	case errors.BadRequest:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}

// MessageFrom extracts a human message from an error body. It reads
// "message", then "error", and falls back to fallback.
func MessageFrom(body []byte, fallback string) string {
	var msg struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &msg); err == nil {
		if s := stringField(msg.Message); s != "" {
			return s
		}
		if s := stringField(msg.Error); s != "" {
			return s
		}
	}
	return fallback
}

// stringField accepts a JSON string or an object with its own message.
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}

func newError(status int, body []byte) *Error {
	fallback := http.StatusText(status)
	if fallback == "" {
		fallback = "Request failed"
	}
	return &Error{StatusCode: status, Message: MessageFrom(body, fallback)}
}
