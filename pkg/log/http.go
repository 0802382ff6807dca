package log

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// requestLogger derives the per-request logger shared by the gin and net/http
// middlewares and returns it with the request id it was tagged with.
func requestLogger(logger zerolog.Logger, r *http.Request, ip string) (zerolog.Logger, string) {
	reqID := r.Header.Get(headerRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	return logger.With().
		Str(FieldRequestID, reqID).
		Str(FieldMethod, r.Method).
		Str(FieldPath, r.URL.Path).
		Str(FieldClientIP, ip).
		Logger(), reqID
}

// HTTPMiddleware wraps plain net/http handlers (the websocket endpoint, the
// health probe and static uploads). Paths listed in quiet still get a request
// logger but are not logged on completion.
func HTTPMiddleware(logger zerolog.Logger, quiet ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			child, reqID := requestLogger(logger, r, clientIP(r))
			w.Header().Set(headerRequestID, reqID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(WithLogger(r.Context(), child)))

			if skip[r.URL.Path] {
				return
			}
			evt := child.Info()
			if rec.status >= http.StatusInternalServerError {
				evt = child.Error()
			}
			// An upgraded socket outlives this log line; latency is the handshake.
			evt.Int(FieldStatus, rec.status).
				Bool("upgraded", rec.upgraded).
				Float64(FieldLatency, float64(time.Since(start).Milliseconds())).
				Msg("request completed")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status   int
	upgraded bool
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets gorilla/websocket take over the connection through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.upgraded = true
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
