package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dvcrn/modelgate-admin-client/internal/credentials"
)

// watchUsageProcedure is a server-streaming procedure hosted only by the test server.
const watchUsageProcedure = "/admin.v1.RelayService/WatchRelayUsage"

type watchUsageRequest struct{}

type usageEvent struct {
	Requests int64 `json:"requests,string"`
}

// fakeAdminServer is an admin API that accepts exactly one access token.
type fakeAdminServer struct {
	server *httptest.Server

	mu             sync.Mutex
	validToken     string
	refreshGate    chan struct{}
	refreshReply   *RefreshTokenResponse
	refreshErr     error
	protectedCode  connect.Code
	refreshTokens  []string
	protectedAuth  []string
	streamAuth     []string
	loginPasswords []string
}

func newFakeAdminServer(t *testing.T) *fakeAdminServer {
	t.Helper()
	s := &fakeAdminServer{
		validToken:    "B",
		refreshReply:  &RefreshTokenResponse{AccessToken: "B", RefreshToken: "R2"},
		protectedCode: connect.CodeUnauthenticated,
	}

	codec := connect.WithCodec(NewJSONCodec())
	mux := http.NewServeMux()
	mux.Handle(AuthServiceLoginProcedure, connect.NewUnaryHandler(AuthServiceLoginProcedure, s.login, codec))
	mux.Handle(AuthServiceRefreshTokenProcedure, connect.NewUnaryHandler(AuthServiceRefreshTokenProcedure, s.refresh, codec))
	mux.Handle(AuthServiceGetUserInfoProcedure, connect.NewUnaryHandler(AuthServiceGetUserInfoProcedure, s.getUserInfo, codec))
	mux.Handle(watchUsageProcedure, connect.NewServerStreamHandler(watchUsageProcedure, s.watchUsage, codec))

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func (s *fakeAdminServer) URL() string {
	return s.server.URL
}

func (s *fakeAdminServer) set(fn func(s *fakeAdminServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeAdminServer) login(_ context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginPasswords = append(s.loginPasswords, req.Msg.Password)
	if req.Msg.Username != "admin" || req.Msg.Password != "secret" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid username or password"))
	}
	return connect.NewResponse(&LoginResponse{AccessToken: s.validToken, RefreshToken: "R1"}), nil
}

func (s *fakeAdminServer) refresh(ctx context.Context, req *connect.Request[RefreshTokenRequest]) (*connect.Response[RefreshTokenResponse], error) {
	s.mu.Lock()
	s.refreshTokens = append(s.refreshTokens, req.Msg.RefreshToken)
	gate := s.refreshGate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, connect.NewError(connect.CodeCanceled, ctx.Err())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return connect.NewResponse(s.refreshReply), nil
}

func (s *fakeAdminServer) getUserInfo(_ context.Context, req *connect.Request[GetUserInfoRequest]) (*connect.Response[GetUserInfoResponse], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	header := req.Header().Get("Authorization")
	s.protectedAuth = append(s.protectedAuth, header)
	if header != "Bearer "+s.validToken {
		return nil, connect.NewError(s.protectedCode, errors.New("invalid access token"))
	}
	return connect.NewResponse(&GetUserInfoResponse{User: &UserInfo{
		ID:           42,
		Username:     "admin",
		IsSuperAdmin: true,
		Buttons:      []string{"relay:create"},
		Gender:       "female",
	}}), nil
}

func (s *fakeAdminServer) watchUsage(_ context.Context, req *connect.Request[watchUsageRequest], stream *connect.ServerStream[usageEvent]) error {
	s.mu.Lock()
	header := req.Header().Get("Authorization")
	s.streamAuth = append(s.streamAuth, header)
	valid := header == "Bearer "+s.validToken
	s.mu.Unlock()

	if !valid {
		return connect.NewError(connect.CodeUnauthenticated, errors.New("invalid access token"))
	}
	return stream.Send(&usageEvent{Requests: 7})
}

func (s *fakeAdminServer) RefreshTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.refreshTokens...)
}

func (s *fakeAdminServer) ProtectedAuth() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.protectedAuth...)
}

func (s *fakeAdminServer) LoginPasswords() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loginPasswords...)
}

func (s *fakeAdminServer) StreamAuth() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.streamAuth...)
}

func newTestClient(t *testing.T, srv *fakeAdminServer, stored map[string]string, opts ...Option) (*Client, *credentials.MemoryStore) {
	t.Helper()
	store := credentials.NewMemoryStore(stored)
	nop := zerolog.Nop()
	opts = append([]Option{WithLogger(&nop), WithClock(clockwork.NewFakeClock())}, opts...)

	client, err := NewClient(Config{BaseURL: srv.URL()}, credentials.NewSession(store), opts...)
	require.NoError(t, err)
	return client, store
}

func countOf(values []string, want string) int {
	n := 0
	for _, v := range values {
		if v == want {
			n++
		}
	}
	return n
}
