// Package auth authenticates incoming widget connections on the backend
// side of the channel.
package auth

import "net/http"

type Client interface {
	// Auth authenticates the connecting party, returning its user id.
	Auth(r *http.Request) (string, error)
}
