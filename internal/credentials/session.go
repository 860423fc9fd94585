package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvcrn/modelgate-admin-client/internal/logger"
)

// Session reads and writes the token pair on top of a Store. The pair is
// written and cleared under one lock so readers never see a mix of old and
// new tokens.
type Session struct {
	mu    sync.RWMutex
	store Store
	log   *zerolog.Logger
}

// NewSession wraps store. The store should not be written to directly while
// the session is in use.
func NewSession(store Store) *Session {
	return &Session{
		store: store,
		log:   logger.Get(),
	}
}

// Name returns the backing store name.
func (s *Session) Name() string {
	return s.store.Name()
}

// Credential returns a consistent snapshot of both tokens.
func (s *Session) Credential() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Credential{
		AccessToken:  s.get(TokenKey),
		RefreshToken: s.get(RefreshTokenKey),
	}
}

// AccessToken returns the current access token or "".
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(TokenKey)
}

// RefreshToken returns the current refresh token or "".
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(RefreshTokenKey)
}

// Save replaces both tokens.
func (s *Session) Save(c Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Set(TokenKey, c.AccessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := s.store.Set(RefreshTokenKey, c.RefreshToken); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Clear removes both tokens. Both removals are attempted even if the first fails.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(
		s.store.Remove(TokenKey),
		s.store.Remove(RefreshTokenKey),
	)
}

// get must be called with s.mu held.
func (s *Session) get(key string) string {
	value, err := s.store.Get(key)
	if err != nil {
		s.log.Warn().Err(err).Str("store", s.store.Name()).Str("key", key).Msg("Failed to read credential")
		return ""
	}
	return value
}
