package credentials

// Store keys shared with the web console's local storage layout.
const (
	TokenKey        = "token"
	RefreshTokenKey = "refreshToken"
)

// Credential is the access/refresh token pair issued by the admin AuthService.
// Both fields are empty when the user is logged out.
type Credential struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether neither token is present.
func (c Credential) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}
