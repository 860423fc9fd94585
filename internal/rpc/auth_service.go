package rpc

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/dvcrn/modelgate-admin-client/internal/auth"
	"github.com/dvcrn/modelgate-admin-client/internal/credentials"
)

// AuthClient calls admin.v1.AuthService.
type AuthClient struct {
	login        *connect.Client[LoginRequest, LoginResponse]
	refreshToken *connect.Client[RefreshTokenRequest, RefreshTokenResponse]
	getUserInfo  *connect.Client[GetUserInfoRequest, GetUserInfoResponse]
}

func newAuthClient(c *Client) *AuthClient {
	return &AuthClient{
		login:        NewServiceClient[LoginRequest, LoginResponse](c, AuthServiceLoginProcedure),
		refreshToken: NewServiceClient[RefreshTokenRequest, RefreshTokenResponse](c, AuthServiceRefreshTokenProcedure),
		getUserInfo:  NewServiceClient[GetUserInfoRequest, GetUserInfoResponse](c, AuthServiceGetUserInfoProcedure),
	}
}

// Login calls AuthService.Login. The returned tokens are not stored; see Client.Login.
func (a *AuthClient) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	res, err := a.login.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// RefreshToken calls AuthService.RefreshToken. It is never retried by the
// auth interceptor.
func (a *AuthClient) RefreshToken(ctx context.Context, req *RefreshTokenRequest) (*RefreshTokenResponse, error) {
	res, err := a.refreshToken.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// GetUserInfo returns the signed-in user.
func (a *AuthClient) GetUserInfo(ctx context.Context) (*UserInfo, error) {
	res, err := a.getUserInfo.CallUnary(ctx, connect.NewRequest(&GetUserInfoRequest{}))
	if err != nil {
		return nil, err
	}
	if res.Msg.User == nil {
		return nil, fmt.Errorf("%s returned no user", AuthServiceGetUserInfoProcedure)
	}
	return res.Msg.User, nil
}

// exchange backs the refresh coordinator. Errors the server sent are marked
// with auth.ErrRefreshDenied; transport failures are passed through.
func (a *AuthClient) exchange(ctx context.Context, refreshToken string) (credentials.Credential, error) {
	res, err := a.RefreshToken(ctx, &RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		if IsWireError(err) {
			return credentials.Credential{}, fmt.Errorf("%w: %w", auth.ErrRefreshDenied, err)
		}
		return credentials.Credential{}, err
	}
	return credentials.Credential{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
}
