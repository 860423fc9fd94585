package rpc

import "strings"

const (
	// AuthServiceName is the fully-qualified name of the admin AuthService.
	AuthServiceName = "admin.v1.AuthService"

	AuthServiceLoginProcedure        = "/admin.v1.AuthService/Login"
	AuthServiceRefreshTokenProcedure = "/admin.v1.AuthService/RefreshToken"
	AuthServiceGetUserInfoProcedure  = "/admin.v1.AuthService/GetUserInfo"
)

// ParseProcedure splits "/pkg.Service/Method" into service and method.
// Malformed input is returned whole as the method.
func ParseProcedure(procedure string) (service, method string) {
	trimmed := strings.TrimPrefix(procedure, "/")
	service, method, ok := strings.Cut(trimmed, "/")
	if !ok {
		return "", procedure
	}
	return service, method
}
