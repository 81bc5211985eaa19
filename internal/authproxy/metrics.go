package authproxy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bl4ckh401/chama/internal/upstream"
)

type metrics struct {
	requests *prometheus.CounterVec
	upstream *prometheus.HistogramVec
	relayed  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chama",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Proxy requests by route and response status.",
		}, []string{"route", "status"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chama",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to the backend API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chama",
			Subsystem: "notifications",
			Name:      "relayed_total",
			Help:      "Notifications relayed to browsers by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.requests, m.upstream, m.relayed)
	return m
}

// statusRecorder captures the response status for metrics and logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush keeps server-sent events streaming through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrument tags the request with an id, counts it and logs the outcome.
func (s *Service) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(upstream.WithRequestID(r.Context(), id)))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()

		s.log.Info("request",
			zap.String("request_id", id),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
