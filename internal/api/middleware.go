package api

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// requestID returns the id assigned to the request, or "".
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// instrument assigns a request id, applies the rate limit when limited
// is set, and logs and measures the request under route.
func (s *Server) instrument(route string, limited bool, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()

		id := s.ids.Generate()
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

		sw := &statusWriter{ResponseWriter: w}
		if limited && s.limiter != nil && !s.limiter.Allow() {
			writeError(sw, r, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", nil)
		} else {
			h(sw, r)
		}
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		elapsed := s.clock.Now().Sub(start)
		s.metrics.ObserveRequest(route, sw.status, elapsed)
		s.logger.Info("request",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", elapsed,
			"request_id", id)
	})
}
