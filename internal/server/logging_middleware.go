package server

import (
	"net/http"
	"time"

	"github.com/dvcrn/modelgate-admin-client/internal/logger"
)

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger.Get().Info().
			Str("method", r.Method).
			Str("url", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Msg("Incoming request")

		next.ServeHTTP(w, r)

		logger.Get().Info().
			Str("method", r.Method).
			Str("url", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

// Handler returns the server wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s)
}
