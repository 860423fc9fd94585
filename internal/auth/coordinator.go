// Package auth coordinates access token refreshes for a credential session.
//
// Any number of goroutines may discover an expired access token at once.
// The Coordinator guarantees they share a single refresh round-trip and all
// observe its outcome.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/dvcrn/modelgate-admin-client/internal/credentials"
	"github.com/dvcrn/modelgate-admin-client/internal/logger"
)

// DefaultRefreshTimeout bounds a single refresh round-trip.
const DefaultRefreshTimeout = 30 * time.Second

// Refresher exchanges a refresh token for a new credential pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (credentials.Credential, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (credentials.Credential, error)

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (credentials.Credential, error) {
	return f(ctx, refreshToken)
}

// refreshOperation is the refresh currently in flight. done is closed once
// err is final.
type refreshOperation struct {
	done    chan struct{}
	err     error
	waiters int
}

// Coordinator owns the single in-flight refresh for a session.
type Coordinator struct {
	session   *credentials.Session
	refresher Refresher
	timeout   time.Duration
	clock     clockwork.Clock
	log       *zerolog.Logger

	mu       sync.Mutex
	inflight *refreshOperation
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout bounds each refresh round-trip. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock sets the clock used to time refreshes.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// NewCoordinator creates a Coordinator refreshing session through refresher.
func NewCoordinator(session *credentials.Session, refresher Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{
		session:   session,
		refresher: refresher,
		timeout:   DefaultRefreshTimeout,
		clock:     clockwork.NewRealClock(),
		log:       logger.Get(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestRefresh refreshes the session, joining a refresh already in flight
// if there is one, and reports whether the session now holds fresh tokens.
func (c *Coordinator) RequestRefresh(ctx context.Context) bool {
	return c.Refresh(ctx) == nil
}

// Refresh is RequestRefresh keeping the failure cause. It returns
// ErrNoRefreshToken, an error wrapping ErrRefreshFailed, or ctx.Err() if
// ctx ends first; the shared refresh keeps running for other waiters.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	op := c.inflight
	if op == nil {
		refreshToken := c.session.RefreshToken()
		if refreshToken == "" {
			c.mu.Unlock()
			return ErrNoRefreshToken
		}
		op = &refreshOperation{done: make(chan struct{})}
		c.inflight = op
		go c.run(context.WithoutCancel(ctx), op, refreshToken)
	}
	op.waiters++
	c.mu.Unlock()

	defer c.leave(op)

	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waiting returns how many callers are waiting on the in-flight refresh.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return 0
	}
	return c.inflight.waiters
}

func (c *Coordinator) leave(op *refreshOperation) {
	c.mu.Lock()
	op.waiters--
	c.mu.Unlock()
}

func (c *Coordinator) run(ctx context.Context, op *refreshOperation, refreshToken string) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.clock.Now()
	err := c.exchange(ctx, refreshToken)
	elapsed := c.clock.Since(start)

	if err != nil {
		c.log.Warn().Err(err).Dur("duration", elapsed).Str("store", c.session.Name()).Msg("Token refresh failed, clearing credentials")
		if clearErr := c.session.Clear(); clearErr != nil {
			c.log.Error().Err(clearErr).Msg("Failed to clear credentials")
		}
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	} else {
		c.log.Info().Dur("duration", elapsed).Msg("Successfully refreshed access token")
	}

	// Unpublish before waking waiters so the next failure starts a new refresh.
	c.mu.Lock()
	c.inflight = nil
	op.err = err
	c.mu.Unlock()
	close(op.done)
}

func (c *Coordinator) exchange(ctx context.Context, refreshToken string) error {
	creds, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	// A reply without an access token leaves the stored pair untouched.
	if creds.AccessToken == "" {
		c.log.Warn().Msg("Refresh response carried no access token; keeping stored credentials")
		return nil
	}
	if err := c.session.Save(creds); err != nil {
		return fmt.Errorf("failed to save refreshed credentials: %w", err)
	}
	return nil
}
