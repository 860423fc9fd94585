// Package rpc is the modelgate admin API client. Calls travel through a
// fixed interceptor chain: logging first, then bearer authentication with
// refresh-and-retry on unauthenticated replies.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/dvcrn/modelgate-admin-client/internal/auth"
	"github.com/dvcrn/modelgate-admin-client/internal/credentials"
	httpclient "github.com/dvcrn/modelgate-admin-client/internal/http"
	"github.com/dvcrn/modelgate-admin-client/internal/logger"
)

// DefaultBaseURL is where a locally running admin server mounts its API.
const DefaultBaseURL = "http://localhost:8080/api"

// Config holds the connection settings of a Client.
type Config struct {
	// BaseURL is prefixed to every procedure path.
	BaseURL string
	// RequestTimeout bounds each HTTP round-trip. Zero defers to the call context.
	RequestTimeout time.Duration
	// RefreshTimeout bounds a token refresh. Zero selects auth.DefaultRefreshTimeout.
	RefreshTimeout time.Duration
}

type clientOptions struct {
	httpClient httpclient.HTTPClient
	log        *zerolog.Logger
	clock      clockwork.Clock
	extra      []connect.ClientOption
}

// Option configures a Client.
type Option func(*clientOptions)

// WithHTTPClient replaces the transport built from Config.RequestTimeout.
func WithHTTPClient(c httpclient.HTTPClient) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithLogger sets the logger shared by the interceptors and the coordinator.
func WithLogger(l *zerolog.Logger) Option {
	return func(o *clientOptions) {
		o.log = l
	}
}

// WithClock sets the clock used for call and refresh durations.
func WithClock(clock clockwork.Clock) Option {
	return func(o *clientOptions) {
		o.clock = clock
	}
}

// WithClientOptions appends Connect options after the interceptor chain.
func WithClientOptions(opts ...connect.ClientOption) Option {
	return func(o *clientOptions) {
		o.extra = append(o.extra, opts...)
	}
}

// Client is a connection to the admin API bound to one credential session.
type Client struct {
	Auth *AuthClient

	session     *credentials.Session
	coordinator *auth.Coordinator
	httpClient  httpclient.HTTPClient
	baseURL     string
	connectOpts []connect.ClientOption
}

// NewClient wires the transport, the interceptor chain and the refresh
// coordinator for session.
func NewClient(cfg Config, session *credentials.Session, opts ...Option) (*Client, error) {
	if session == nil {
		return nil, errors.New("rpc: session is required")
	}

	o := clientOptions{
		log:   logger.Get(),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = httpclient.NewHTTPClient(cfg.RequestTimeout)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		session:    session,
		httpClient: o.httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}

	// The coordinator refreshes through c.Auth, which needs the coordinator
	// in its interceptor chain; the closure resolves c.Auth at call time.
	c.coordinator = auth.NewCoordinator(session,
		auth.RefresherFunc(func(ctx context.Context, refreshToken string) (credentials.Credential, error) {
			return c.Auth.exchange(ctx, refreshToken)
		}),
		auth.WithTimeout(cfg.RefreshTimeout),
		auth.WithClock(o.clock),
		auth.WithLogger(o.log),
	)

	c.connectOpts = append([]connect.ClientOption{
		connect.WithCodec(NewJSONCodec()),
		connect.WithInterceptors(
			NewLoggingInterceptor(o.log, o.clock),
			NewAuthInterceptor(session, c.coordinator, o.log),
		),
	}, o.extra...)

	c.Auth = newAuthClient(c)
	return c, nil
}

// NewServiceClient builds a Connect client for procedure that shares the
// transport, interceptor chain and session of c.
func NewServiceClient[Req, Res any](c *Client, procedure string) *connect.Client[Req, Res] {
	return connect.NewClient[Req, Res](c.httpClient, c.baseURL+procedure, c.connectOpts...)
}

// Session returns the credential session the client authenticates with.
func (c *Client) Session() *credentials.Session {
	return c.session
}

// Login signs in and stores the returned token pair.
func (c *Client) Login(ctx context.Context, req *LoginRequest) error {
	res, err := c.Auth.Login(ctx, req)
	if err != nil {
		return err
	}
	if res.AccessToken == "" {
		return errors.New("login response carried no access token")
	}
	if err := c.session.Save(credentials.Credential{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Logout forgets the stored tokens. The server keeps no session state to revoke.
func (c *Client) Logout() error {
	return c.session.Clear()
}

// Refresh exchanges the stored refresh token now, joining a refresh already
// in flight. Failure clears the session.
func (c *Client) Refresh(ctx context.Context) error {
	return c.coordinator.Refresh(ctx)
}
