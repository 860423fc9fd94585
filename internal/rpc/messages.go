package rpc

import "github.com/rs/zerolog"

const redacted = "[REDACTED]"

// LoginRequest signs in with a username and password.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// MarshalZerologObject keeps the password out of request logs.
func (r *LoginRequest) MarshalZerologObject(e *zerolog.Event) {
	e.Str("username", r.Username).Str("password", redacted).Bool("rememberMe", r.RememberMe)
}

// LoginResponse carries the token pair issued at sign-in.
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// MarshalZerologObject keeps the refresh token out of request logs.
func (r *RefreshTokenRequest) MarshalZerologObject(e *zerolog.Event) {
	e.Str("refreshToken", redacted)
}

// RefreshTokenResponse carries the renewed token pair.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// GetUserInfoRequest asks for the user the access token belongs to.
type GetUserInfoRequest struct{}

// GetUserInfoResponse wraps the signed-in user.
type GetUserInfoResponse struct {
	User *UserInfo `json:"user"`
}

// UserInfo is the signed-in admin user. IDs are int64 and therefore
// string-encoded on the wire. Gender is one of "male", "female" or "unknown".
type UserInfo struct {
	ID           int64    `json:"id,string"`
	Username     string   `json:"username"`
	Nickname     string   `json:"nickname,omitempty"`
	IsSuperAdmin bool     `json:"isSuperAdmin,omitempty"`
	Buttons      []string `json:"buttons,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	AvatarURL    string   `json:"avatarUrl,omitempty"`
	Description  string   `json:"description,omitempty"`
}
