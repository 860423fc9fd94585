// Package server exposes a credential session over HTTP so that a deployed
// instance can be seeded with tokens and inspected remotely.
package server

import (
	"errors"
	"net/http"

	"connectrpc.com/connect"
	jsoniter "github.com/json-iterator/go"

	"github.com/dvcrn/modelgate-admin-client/internal/auth"
	"github.com/dvcrn/modelgate-admin-client/internal/credentials"
	"github.com/dvcrn/modelgate-admin-client/internal/logger"
	"github.com/dvcrn/modelgate-admin-client/internal/rpc"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server serves the admin endpoints for one rpc.Client.
type Server struct {
	client   *rpc.Client
	adminKey string
	mux      *http.ServeMux
}

// NewServer creates a server for client. Every route requires adminKey;
// an empty key disables the routes.
func NewServer(client *rpc.Client, adminKey string) *Server {
	s := &Server{
		client:   client,
		adminKey: adminKey,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()

	return s
}

// Start listens on addr until the listener fails.
func (s *Server) Start(addr string) error {
	logger.Get().Info().Str("store", s.client.Session().Name()).Msgf("Starting credential server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/admin/credentials", s.adminMiddleware(s.credentialsHandler))
	s.mux.HandleFunc("/admin/credentials/status", s.adminMiddleware(s.credentialsStatusHandler))
	s.mux.HandleFunc("/admin/credentials/refresh", s.adminMiddleware(s.refreshHandler))
	s.mux.HandleFunc("/admin/whoami", s.adminMiddleware(s.whoamiHandler))
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// credentialsHandler stores a token pair on POST and logs the session out on DELETE.
func (s *Server) credentialsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var creds credentials.Credential
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			logger.Get().Error().Err(err).Msg("Failed to decode credentials request")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if creds.AccessToken == "" {
			http.Error(w, "accessToken is required", http.StatusBadRequest)
			return
		}
		if err := s.client.Session().Save(creds); err != nil {
			logger.Get().Error().Err(err).Msg("Failed to save credentials")
			http.Error(w, "Failed to save credentials", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Credentials saved successfully",
		})
	case http.MethodDelete:
		if err := s.client.Logout(); err != nil {
			logger.Get().Error().Err(err).Msg("Failed to clear credentials")
			http.Error(w, "Failed to clear credentials", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// credentialsStatusHandler handles GET /admin/credentials/status
func (s *Server) credentialsStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	creds := s.client.Session().Credential()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"store":           s.client.Session().Name(),
		"hasCredentials":  creds.AccessToken != "",
		"hasRefreshToken": creds.RefreshToken != "",
	})
}

// refreshHandler handles POST /admin/credentials/refresh
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := s.client.Refresh(r.Context()); err != nil {
		logger.Get().Warn().Err(err).Msg("Forced refresh failed")
		status := http.StatusBadGateway
		if errors.Is(err, auth.ErrNoRefreshToken) || errors.Is(err, auth.ErrRefreshDenied) {
			status = http.StatusUnauthorized
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// whoamiHandler handles GET /admin/whoami through the authenticated client.
func (s *Server) whoamiHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user, err := s.client.Auth.GetUserInfo(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if rpc.IsUnauthenticated(err) || connect.CodeOf(err) == connect.CodePermissionDenied {
			status = http.StatusUnauthorized
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get().Error().Err(err).Msg("Failed to encode response")
	}
}
