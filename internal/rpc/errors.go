package rpc

import "connectrpc.com/connect"

// IsUnauthenticated reports whether err carries the Unauthenticated code,
// the only classification that triggers a token refresh.
func IsUnauthenticated(err error) bool {
	return err != nil && connect.CodeOf(err) == connect.CodeUnauthenticated
}

// IsWireError reports whether err was sent by the peer rather than produced
// locally by a failed round-trip.
func IsWireError(err error) bool {
	return connect.IsWireError(err)
}
