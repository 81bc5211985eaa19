package authproxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/session"
	"github.com/bl4ckh401/chama/internal/upstream"
)

const keepAlive = 30 * time.Second

// handleStream opens a socket for the caller's token and relays each
// notification as an SSE event named by its type. The socket lives exactly
// as long as the request.
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeMessage(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	owner, ok := s.resolveOwner(w, r, "stream", sess.Token)
	if !ok {
		return
	}

	ch := make(chan model.Notification, 16)
	notifier := s.cfg.Dial(sess.Token)
	unsubscribe := notifier.Subscribe(func(n model.Notification) {
		select {
		case ch <- n:
		default:
		}
	})
	defer unsubscribe()

	if err := notifier.Connect(r.Context()); err != nil {
		if errors.Is(err, errors.Unauthorized) {
			writeMessage(w, http.StatusUnauthorized, "Session expired")
			return
		}
		s.log.Warn("notification socket unavailable",
			zap.String("request_id", upstream.RequestID(r.Context())),
			zap.Error(err),
		)
		writeMessage(w, http.StatusBadGateway, "Notification service unavailable")
		return
	}
	defer notifier.Disconnect()

	id := s.addSubscriber(owner)
	defer s.removeSubscriber(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case n := <-ch:
			ev := s.publishEvent(owner, n)
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

// handleRecent returns the caller's relayed notifications, oldest first.
func (s *Service) handleRecent(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	owner, ok := s.resolveOwner(w, r, "recent", sess.Token)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.recentEvents(owner, limit))
}

// resolveOwner maps a session token to the id of the user it belongs to.
// Relayed events are kept per user, so history survives a fresh login.
// On failure the response has been written.
func (s *Service) resolveOwner(w http.ResponseWriter, r *http.Request, route, token string) (string, bool) {
	timer := prometheus.NewTimer(s.metrics.upstream.WithLabelValues(route))
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
		s.log.Warn("resolving session owner",
			zap.String("request_id", upstream.RequestID(r.Context())),
			zap.String("route", route),
			zap.Error(err),
		)
		writeMessage(w, http.StatusBadGateway, "Could not reach the API")
	case user.ID == "":
		writeMessage(w, http.StatusInternalServerError, msgInvalidResponse)
	default:
		return user.ID, true
	}
	return "", false
}

func (s *Service) publishEvent(owner string, n model.Notification) Event {
	s.metrics.relayed.WithLabelValues(string(n.Type)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	ev := Event{
		ID:           s.nextEventID,
		Timestamp:    time.Now(),
		Notification: n,
		owner:        owner,
	}
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}
	return ev
}

func (s *Service) recentEvents(owner string, limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if ev.owner == owner {
			out = append(out, ev)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Notification.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = owner
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
