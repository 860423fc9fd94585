package http

import "net/http"

// HTTPClient is the transport the RPC clients send through. It matches connect.HTTPClient.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
