package authproxy

import (
	"encoding/json"
	"io"
	"net/http"
)

const maxRequestBody = 1 << 20 // 1 MB

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// writeRaw relays an upstream body unchanged.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// readJSONBody reads the request body and rejects anything that is not a
// JSON document. It writes the 400 itself.
func readJSONBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read request body")
		return nil, false
	}
	if !json.Valid(body) {
		writeMessage(w, http.StatusBadRequest, "Request body must be JSON")
		return nil, false
	}
	return body, true
}
