package auth

import (
	"fmt"
	"net/http"
)

// QueryClient reads the identity from the handshake query parameters.
// Browser websocket clients cannot set headers, so the widget sends
// `x-uid` and `x-token` in the URL.
type QueryClient struct{}

func (c *QueryClient) Auth(r *http.Request) (string, error) {
	q := r.URL.Query()

	uid := q.Get("x-uid")
	if uid == "" {
		return "", fmt.Errorf("empty x-uid query parameter")
	}
	if q.Get("x-token") == "" {
		return "", fmt.Errorf("empty x-token query parameter")
	}
	// TODO: verify the token against the marketplace auth API.
	return uid, nil
}
