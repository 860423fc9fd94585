package rpc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dvcrn/modelgate-admin-client/internal/auth"
	"github.com/dvcrn/modelgate-admin-client/internal/credentials"
)

func staleCredentials() map[string]string {
	return map[string]string{
		credentials.TokenKey:        "A",
		credentials.RefreshTokenKey: "R1",
	}
}

// getUserInfoConcurrently issues n calls that all fail with the stale token,
// waits until every one of them has joined the refresh, then opens the gate.
func getUserInfoConcurrently(t *testing.T, client *Client, gate chan struct{}, n int) []error {
	t.Helper()
	results := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			_, results[i] = client.Auth.GetUserInfo(context.Background())
			return nil
		})
	}

	require.Eventually(t, func() bool { return client.coordinator.Waiting() == n }, 5*time.Second, time.Millisecond,
		"every failed call should wait on the same refresh")
	close(gate)
	require.NoError(t, g.Wait())
	return results
}

func TestAuthInterceptor_ConcurrentFailuresShareOneRefresh(t *testing.T) {
	srv := newFakeAdminServer(t)
	gate := make(chan struct{})
	srv.set(func(s *fakeAdminServer) { s.refreshGate = gate })
	client, store := newTestClient(t, srv, staleCredentials())

	for _, err := range getUserInfoConcurrently(t, client, gate, 3) {
		assert.NoError(t, err)
	}

	assert.Equal(t, []string{"R1"}, srv.RefreshTokens(), "one refresh for all failures")
	auths := srv.ProtectedAuth()
	assert.Len(t, auths, 6, "each call is sent twice")
	assert.Equal(t, 3, countOf(auths, "Bearer A"))
	assert.Equal(t, 3, countOf(auths, "Bearer B"), "retries carry the refreshed token")
	assert.Equal(t, map[string]string{
		credentials.TokenKey:        "B",
		credentials.RefreshTokenKey: "R2",
	}, store.Snapshot())
}

func TestAuthInterceptor_RefreshDenied(t *testing.T) {
	srv := newFakeAdminServer(t)
	gate := make(chan struct{})
	srv.set(func(s *fakeAdminServer) {
		s.refreshGate = gate
		s.refreshErr = connect.NewError(connect.CodeUnauthenticated, errors.New("refresh token expired"))
	})
	client, store := newTestClient(t, srv, staleCredentials())

	for _, err := range getUserInfoConcurrently(t, client, gate, 3) {
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		var connectErr *connect.Error
		require.True(t, errors.As(err, &connectErr))
		assert.Equal(t, "invalid access token", connectErr.Message(), "callers see the original failure")
		assert.NotErrorIs(t, err, auth.ErrRefreshFailed)
	}

	assert.Len(t, srv.RefreshTokens(), 1)
	assert.Len(t, srv.ProtectedAuth(), 3, "nothing is retried")
	assert.Empty(t, store.Snapshot(), "denied refresh logs the session out")
}

func TestAuthInterceptor_NoRefreshToken(t *testing.T) {
	srv := newFakeAdminServer(t)
	client, store := newTestClient(t, srv, map[string]string{credentials.TokenKey: "A"})

	_, err := client.Auth.GetUserInfo(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))

	assert.Empty(t, srv.RefreshTokens(), "no refresh without a refresh token")
	assert.Equal(t, []string{"Bearer A"}, srv.ProtectedAuth())
	assert.Equal(t, map[string]string{credentials.TokenKey: "A"}, store.Snapshot())
}

func TestAuthInterceptor_NoTokenSendsNoHeader(t *testing.T) {
	srv := newFakeAdminServer(t)
	client, _ := newTestClient(t, srv, nil)

	_, err := client.Auth.GetUserInfo(context.Background())
	assert.True(t, IsUnauthenticated(err))
	assert.Equal(t, []string{""}, srv.ProtectedAuth())
	assert.Empty(t, srv.RefreshTokens())
}

func TestAuthInterceptor_RetryIsUnauthenticatedAgain(t *testing.T) {
	srv := newFakeAdminServer(t)
	srv.set(func(s *fakeAdminServer) { s.validToken = "never issued" })
	client, store := newTestClient(t, srv, staleCredentials())

	_, err := client.Auth.GetUserInfo(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))

	assert.Equal(t, []string{"Bearer A", "Bearer B"}, srv.ProtectedAuth(), "exactly one retry")
	assert.Equal(t, []string{"R1"}, srv.RefreshTokens())
	assert.Equal(t, "B", store.Snapshot()[credentials.TokenKey], "refreshed tokens are kept")
}

func TestAuthInterceptor_RefreshProcedureIsNotRecovered(t *testing.T) {
	srv := newFakeAdminServer(t)
	srv.set(func(s *fakeAdminServer) {
		s.refreshErr = connect.NewError(connect.CodeUnauthenticated, errors.New("refresh token expired"))
	})
	client, store := newTestClient(t, srv, staleCredentials())

	_, err := client.Auth.RefreshToken(context.Background(), &RefreshTokenRequest{RefreshToken: "R1"})
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))
	assert.Equal(t, []string{"R1"}, srv.RefreshTokens(), "no nested refresh")
	assert.Equal(t, staleCredentials(), store.Snapshot())

	err = client.Refresh(context.Background())
	assert.ErrorIs(t, err, auth.ErrRefreshFailed)
	assert.ErrorIs(t, err, auth.ErrRefreshDenied)
	assert.Len(t, srv.RefreshTokens(), 2)
	assert.Empty(t, store.Snapshot())
}

func TestAuthInterceptor_StreamingIsNotRetried(t *testing.T) {
	srv := newFakeAdminServer(t)
	client, store := newTestClient(t, srv, staleCredentials())
	watch := NewServiceClient[watchUsageRequest, usageEvent](client, watchUsageProcedure)

	stream, err := watch.CallServerStream(context.Background(), connect.NewRequest(&watchUsageRequest{}))
	if err == nil {
		for stream.Receive() {
		}
		err = stream.Err()
		_ = stream.Close()
	}
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))

	assert.Equal(t, []string{"Bearer A"}, srv.StreamAuth(), "header attached, call not replayed")
	assert.Empty(t, srv.RefreshTokens())
	assert.Equal(t, staleCredentials(), store.Snapshot())
}

func TestAuthInterceptor_StreamingWithValidToken(t *testing.T) {
	srv := newFakeAdminServer(t)
	client, _ := newTestClient(t, srv, map[string]string{credentials.TokenKey: "B"})
	watch := NewServiceClient[watchUsageRequest, usageEvent](client, watchUsageProcedure)

	stream, err := watch.CallServerStream(context.Background(), connect.NewRequest(&watchUsageRequest{}))
	require.NoError(t, err)
	var events []int64
	for stream.Receive() {
		events = append(events, stream.Msg().Requests)
	}
	require.NoError(t, stream.Err())
	require.NoError(t, stream.Close())
	assert.Equal(t, []int64{7}, events)
}

func TestAuthInterceptor_OtherErrorsPropagate(t *testing.T) {
	srv := newFakeAdminServer(t)
	srv.set(func(s *fakeAdminServer) { s.protectedCode = connect.CodePermissionDenied })
	client, store := newTestClient(t, srv, staleCredentials())

	_, err := client.Auth.GetUserInfo(context.Background())
	require.Error(t, err)
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	assert.Len(t, srv.ProtectedAuth(), 1)
	assert.Empty(t, srv.RefreshTokens())
	assert.Equal(t, staleCredentials(), store.Snapshot())
}

func TestAuthInterceptor_TransportFailureDuringRefresh(t *testing.T) {
	srv := newFakeAdminServer(t)
	client, store := newTestClient(t, srv, staleCredentials())
	srv.server.Close()

	err := client.Refresh(context.Background())
	assert.ErrorIs(t, err, auth.ErrRefreshFailed)
	assert.NotErrorIs(t, err, auth.ErrRefreshDenied, "the server never answered")
	assert.Empty(t, store.Snapshot())
}

func TestClient_LoginLogout(t *testing.T) {
	srv := newFakeAdminServer(t)
	client, store := newTestClient(t, srv, nil)

	err := client.Login(context.Background(), &LoginRequest{Username: "admin", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))
	assert.Empty(t, store.Snapshot())

	require.NoError(t, client.Login(context.Background(), &LoginRequest{Username: "admin", Password: "secret", RememberMe: true}))
	assert.Equal(t, map[string]string{
		credentials.TokenKey:        "B",
		credentials.RefreshTokenKey: "R1",
	}, store.Snapshot())

	user, err := client.Auth.GetUserInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "admin", user.Username)
	assert.True(t, user.IsSuperAdmin)
	assert.Equal(t, []string{"relay:create"}, user.Buttons)
	assert.Equal(t, "female", user.Gender)

	require.NoError(t, client.Logout())
	assert.Empty(t, store.Snapshot())
	assert.True(t, client.Session().Credential().Empty())
}

func TestLoggingInterceptor_RedactsAndPassesThrough(t *testing.T) {
	level := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(level) })

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	srv := newFakeAdminServer(t)
	client, _ := newTestClient(t, srv, nil, WithLogger(&log))

	require.NoError(t, client.Login(context.Background(), &LoginRequest{Username: "admin", Password: "secret"}))

	out := buf.String()
	assert.Contains(t, out, `"method":"Login"`)
	assert.Contains(t, out, `"service":"admin.v1.AuthService"`)
	assert.Contains(t, out, `"call_id"`)
	assert.Contains(t, out, "request message")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "secret")
	assert.Equal(t, []string{"secret"}, srv.LoginPasswords(), "payload reaches the server unchanged")
}

// switchingTokens hands out one token and forgets it once the refresh runs.
type switchingTokens struct {
	mu    sync.Mutex
	token string
}

func (s *switchingTokens) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *switchingTokens) RequestRefresh(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return true
}

func TestAuthInterceptor_RetryWithoutTokenDropsHeader(t *testing.T) {
	srv := newFakeAdminServer(t)
	tokens := &switchingTokens{token: "A"}
	nop := zerolog.Nop()
	getUserInfo := connect.NewClient[GetUserInfoRequest, GetUserInfoResponse](
		http.DefaultClient,
		srv.URL()+AuthServiceGetUserInfoProcedure,
		connect.WithCodec(NewJSONCodec()),
		connect.WithInterceptors(NewAuthInterceptor(tokens, tokens, &nop)),
	)

	_, err := getUserInfo.CallUnary(context.Background(), connect.NewRequest(&GetUserInfoRequest{}))
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))
	assert.Equal(t, []string{"Bearer A", ""}, srv.ProtectedAuth(), "the retry must not resend the stale token")
}

func TestLoggingInterceptor_LogsStreamMessages(t *testing.T) {
	level := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(level) })

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	srv := newFakeAdminServer(t)
	client, _ := newTestClient(t, srv, map[string]string{credentials.TokenKey: "B"}, WithLogger(&log))
	watch := NewServiceClient[watchUsageRequest, usageEvent](client, watchUsageProcedure)

	stream, err := watch.CallServerStream(context.Background(), connect.NewRequest(&watchUsageRequest{}))
	require.NoError(t, err)
	for stream.Receive() {
	}
	require.NoError(t, stream.Err())
	_ = stream.Close()

	out := buf.String()
	assert.Contains(t, out, "stream opened")
	assert.Contains(t, out, `"stream_type":"server_stream"`)
	assert.Contains(t, out, `"method":"WatchRelayUsage"`)
	assert.Contains(t, out, "request message", "streamed payloads are logged")
	assert.Contains(t, out, `"payload":{}`)
}

func TestParseProcedure(t *testing.T) {
	service, method := ParseProcedure(AuthServiceRefreshTokenProcedure)
	assert.Equal(t, AuthServiceName, service)
	assert.Equal(t, "RefreshToken", method)

	service, method = ParseProcedure("bogus")
	assert.Empty(t, service)
	assert.Equal(t, "bogus", method)
}

func TestNewClient_RequiresSession(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
}
