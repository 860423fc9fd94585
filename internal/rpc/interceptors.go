package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// TokenSource supplies the access token attached to outgoing calls.
type TokenSource interface {
	AccessToken() string
}

// RefreshRequester renews the access token, reporting whether a retry is
// worthwhile. *auth.Coordinator implements it.
type RefreshRequester interface {
	RequestRefresh(ctx context.Context) bool
}

// LoggingInterceptor logs every outgoing call. It never alters the request
// or its result.
type LoggingInterceptor struct {
	log   *zerolog.Logger
	clock clockwork.Clock
}

var _ connect.Interceptor = (*LoggingInterceptor)(nil)

// NewLoggingInterceptor creates a LoggingInterceptor timing calls with clock.
func NewLoggingInterceptor(log *zerolog.Logger, clock clockwork.Clock) *LoggingInterceptor {
	return &LoggingInterceptor{log: log, clock: clock}
}

func (i *LoggingInterceptor) callLogger(spec connect.Spec) zerolog.Logger {
	service, method := ParseProcedure(spec.Procedure)
	return i.log.With().
		Str("call_id", uuid.NewString()).
		Str("service", service).
		Str("method", method).
		Str("stream_type", streamTypeName(spec.StreamType)).
		Logger()
}

// WrapUnary logs the request payload and the outcome of a unary call.
func (i *LoggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		log := i.callLogger(req.Spec())
		logPayload(log.Debug(), req.Any()).Msg("request message")

		start := i.clock.Now()
		res, err := next(ctx, req)
		elapsed := i.clock.Since(start)

		if err != nil {
			log.Warn().Err(err).Str("code", connect.CodeOf(err).String()).Dur("duration", elapsed).Msg("call failed")
			return res, err
		}
		log.Debug().Dur("duration", elapsed).Msg("call finished")
		return res, nil
	}
}

// WrapStreamingClient logs the stream opening and every message sent on it.
func (i *LoggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		log := i.callLogger(spec)
		log.Debug().Msg("stream opened")
		return &loggingClientConn{StreamingClientConn: next(ctx, spec), log: log}
	}
}

// WrapStreamingHandler is a pass-through; only outgoing calls are logged.
func (i *LoggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// loggingClientConn logs each outgoing stream message.
type loggingClientConn struct {
	connect.StreamingClientConn
	log zerolog.Logger
}

func (c *loggingClientConn) Send(msg any) error {
	logPayload(c.log.Debug(), msg).Msg("request message")
	err := c.StreamingClientConn.Send(msg)
	if err != nil && !errors.Is(err, io.EOF) {
		c.log.Warn().Err(err).Msg("stream send failed")
	}
	return err
}

// AuthInterceptor attaches the bearer token to outgoing calls. A unary call
// rejected as unauthenticated is retried once after a successful refresh.
type AuthInterceptor struct {
	tokens    TokenSource
	refresher RefreshRequester
	log       *zerolog.Logger
}

var _ connect.Interceptor = (*AuthInterceptor)(nil)

// NewAuthInterceptor creates an AuthInterceptor reading tokens from tokens
// and renewing them through refresher.
func NewAuthInterceptor(tokens TokenSource, refresher RefreshRequester, log *zerolog.Logger) *AuthInterceptor {
	return &AuthInterceptor{tokens: tokens, refresher: refresher, log: log}
}

// WrapUnary attaches the bearer token and recovers once from an
// unauthenticated reply.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		res, err := i.send(ctx, next, req)
		if err == nil || !recoverable(req.Spec(), err) {
			return res, err
		}

		i.log.Debug().Str("procedure", req.Spec().Procedure).Msg("Access token rejected, requesting refresh")
		if !i.refresher.RequestRefresh(ctx) {
			return res, err
		}
		return i.send(ctx, next, req)
	}
}

// WrapStreamingClient attaches the bearer token. Streams are never replayed.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		i.attach(conn.RequestHeader())
		return conn
	}
}

// WrapStreamingHandler is a pass-through.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// send re-reads the token on every attempt so a retry carries the refreshed one.
func (i *AuthInterceptor) send(ctx context.Context, next connect.UnaryFunc, req connect.AnyRequest) (connect.AnyResponse, error) {
	i.attach(req.Header())
	return next(ctx, req)
}

// attach sets the bearer header, or removes a stale one once the token is gone.
func (i *AuthInterceptor) attach(header http.Header) {
	token := i.tokens.AccessToken()
	if token == "" {
		header.Del(authorizationHeader)
		return
	}
	header.Set(authorizationHeader, bearerPrefix+token)
}

// recoverable reports whether a failed call may be retried after a refresh.
// The refresh procedure itself and streaming calls never are.
func recoverable(spec connect.Spec, err error) bool {
	return IsUnauthenticated(err) &&
		spec.Procedure != AuthServiceRefreshTokenProcedure &&
		spec.StreamType == connect.StreamTypeUnary
}

func logPayload(e *zerolog.Event, payload any) *zerolog.Event {
	if m, ok := payload.(zerolog.LogObjectMarshaler); ok {
		return e.Object("payload", m)
	}
	return e.Interface("payload", payload)
}

func streamTypeName(t connect.StreamType) string {
	switch t {
	case connect.StreamTypeUnary:
		return "unary"
	case connect.StreamTypeClient:
		return "client_stream"
	case connect.StreamTypeServer:
		return "server_stream"
	case connect.StreamTypeBidi:
		return "bidi_stream"
	default:
		return fmt.Sprintf("stream_type(%d)", t)
	}
}
