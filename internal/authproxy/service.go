// Package authproxy is the browser-facing backend: it proxies auth calls to
// the backend API, keeps the session token in an HTTP-only cookie and relays
// real-time notifications over server-sent events.
package authproxy

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bl4ckh401/chama/internal/model"
	"github.com/bl4ckh401/chama/internal/notify"
	"github.com/bl4ckh401/chama/internal/session"
	"github.com/bl4ckh401/chama/internal/upstream"
)

// Notifier is the part of notify.Client the relay needs.
type Notifier interface {
	Connect(ctx context.Context) error
	Subscribe(handler notify.Handler) (unsubscribe func())
	Disconnect()
}

// Config controls the proxy runtime behavior.
type Config struct {
	Addr         string
	Upstream     *upstream.Client
	Cookies      session.Cookies
	Production   bool
	SocketURL    string
	EventsBuffer int
	Logger       *zap.Logger

	// Dial builds the notification client for one stream. Defaults to a
	// notify.Client on SocketURL.
	Dial func(token string) Notifier
}

// Event is a relayed notification kept in the ring buffer.
type Event struct {
	ID           int64              `json:"id"`
	Timestamp    time.Time          `json:"timestamp"`
	Notification model.Notification `json:"notification"`

	owner string
}

// Status is served at /status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	Addr            string    `json:"addr"`
	Upstream        string    `json:"upstream"`
	Production      bool      `json:"production"`
	Requests        int64     `json:"requests"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the proxy HTTP API.
type Service struct {
	cfg      Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics

	mu          sync.RWMutex
	startedAt   time.Time
	requests    int64
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]string
}

// New returns a new proxy service with the provided config.
func New(cfg Config) *Service {
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:3000"
	}
	if cfg.Cookies.Name == "" {
		cfg.Cookies = session.NewCookies(session.CookieName, cfg.Production)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Upstream == nil {
		cfg.Upstream = upstream.NewClient("http://127.0.0.1:5000/api", 0)
	}

	s := &Service{
		cfg:       cfg,
		log:       cfg.Logger.Named("authproxy"),
		registry:  prometheus.NewRegistry(),
		startedAt: time.Now(),
		subs:      make(map[int]string),
	}
	s.metrics = newMetrics(s.registry)
	if s.cfg.Dial == nil {
		s.cfg.Dial = s.dialNotifier
	}
	return s
}

func (s *Service) dialNotifier(token string) Notifier {
	return notify.New(notify.Config{
		URL:    s.cfg.SocketURL,
		Token:  token,
		Logger: s.log,
	})
}

// Handler returns the routed HTTP handler.
func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/auth/login", s.instrument("login", http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	api.Handle("/auth/register", s.instrument("register", http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	api.Handle("/auth/forgot-password", s.instrument("forgot_password", http.HandlerFunc(s.handleForgotPassword))).Methods(http.MethodPost)
	api.Handle("/auth/reset-password", s.instrument("reset_password", http.HandlerFunc(s.handleResetPassword))).Methods(http.MethodPost)
	api.Handle("/auth/2fa/verify", s.instrument("verify_2fa", http.HandlerFunc(s.handleVerify2FA))).Methods(http.MethodPost)
	api.Handle("/auth/logout", s.instrument("logout", http.HandlerFunc(s.handleLogout))).Methods(http.MethodPost)
	api.Handle("/auth/token", s.instrument("token", http.HandlerFunc(s.handleToken))).Methods(http.MethodGet)
	api.Handle("/auth/session", s.instrument("session", http.HandlerFunc(s.handleSession))).Methods(http.MethodGet)

	guard := s.cfg.Cookies.RequireSession
	api.Handle("/notifications/stream", s.instrument("stream", guard(http.HandlerFunc(s.handleStream)))).Methods(http.MethodGet)
	api.Handle("/notifications/recent", s.instrument("recent", guard(http.HandlerFunc(s.handleRecent)))).Methods(http.MethodGet)

	return r
}

// Run serves HTTP until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.Info("listening",
		zap.String("addr", s.cfg.Addr),
		zap.String("upstream", s.cfg.Upstream.BaseURL()),
		zap.Bool("production", s.cfg.Production),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Trace(server.Shutdown(shutdownCtx))
	case err := <-errCh:
		return errors.Annotate(err, "proxy http server")
	}
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		Addr:            s.cfg.Addr,
		Upstream:        s.cfg.Upstream.BaseURL(),
		Production:      s.cfg.Production,
		Requests:        s.requests,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}
