package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scoutspr/pkg/logger"
	"github.com/okian/scoutspr/pkg/metrics"
)

// RequestIDHeader carries the id echoed on every response. A client value
// is kept so retries from the simulator can be correlated.
const RequestIDHeader = "X-Request-ID"

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger enables per-request logging. Without it requests are only
// counted in metrics.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// instrument records metrics for every request to endpoint, tags the
// response with a request id, and logs failures.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		elapsed := time.Since(start)
		ms := float64(elapsed.Microseconds()) / 1000
		code := strconv.Itoa(rw.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, ms)

		kind, severity, failed := classify(rw.status)
		if failed {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
			metrics.RecordErrorByType(kind, severity)
			metrics.RecordErrorLatency("http", kind, ms)
		}

		if s.log == nil {
			return
		}
		fields := []logger.Field{
			logger.String("request_id", id),
			logger.String("endpoint", endpoint),
			logger.String("method", r.Method),
			logger.Int("status", rw.status),
			logger.Int("bytes", rw.written),
			logger.Duration("elapsed", elapsed),
		}
		if rw.status >= http.StatusInternalServerError {
			s.log.Warn(r.Context(), "request failed", fields...)
			return
		}
		s.log.Debug(r.Context(), "request served", fields...)
	}
}

// classify maps a response status to the error labels used by metrics.
// failed is false for anything below 400.
func classify(status int) (kind, severity string, failed bool) {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error", "high", true
	case status == http.StatusTooManyRequests:
		return "backpressure", "medium", true
	case status == http.StatusNotFound:
		return "not_found", "low", true
	case status >= http.StatusBadRequest:
		return "client_error", "medium", true
	default:
		return "", "", false
	}
}

type responseWriter struct {
	http.ResponseWriter
	status  int
	written int
	wrote   bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wrote {
		return
	}
	rw.wrote = true
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wrote = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err //nolint:wrapcheck // passthrough of the underlying writer
}
