package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dvcrn/modelgate-admin-client/internal/logger"
)

// adminMiddleware checks for the admin key in either
// 'Authorization: Bearer <key>' or 'X-API-Key: <key>' headers.
func (s *Server) adminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			logger.Get().Error().Msg("ADMIN_API_KEY is not set; admin endpoints are disabled")
			http.Error(w, "Admin API not configured", http.StatusInternalServerError)
			return
		}

		var providedToken string
		authHeader := r.Header.Get("Authorization")
		xAPIKeyHeader := r.Header.Get("X-API-Key")

		if authHeader != "" {
			// Expect "Bearer <token>" format, case-insensitive
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Get().Warn().Str("method", r.Method).Str("uri", r.RequestURI).Str("remote_addr", r.RemoteAddr).
					Msg("Invalid Authorization header format for admin endpoint")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}
			providedToken = parts[1]
		} else if xAPIKeyHeader != "" {
			providedToken = xAPIKeyHeader
		} else {
			logger.Get().Warn().Str("method", r.Method).Str("uri", r.RequestURI).Str("remote_addr", r.RemoteAddr).
				Msg("Missing Authorization or X-API-Key header for admin endpoint")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedToken), []byte(s.adminKey)) != 1 {
			logger.Get().Warn().Str("method", r.Method).Str("uri", r.RequestURI).Str("remote_addr", r.RemoteAddr).
				Msg("Invalid admin API key")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}
