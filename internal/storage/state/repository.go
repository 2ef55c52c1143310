// Package state persists small pieces of client state (current identity, session token, theme)
// as key-value pairs.
package state

import (
	"context"
)

const (
	KeyCurrentUser = "currentUser"
	KeyAuthToken   = "auth_token"
	KeyTheme       = "theme"
)

// Repository is a key-value store. Get returns nil without error for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
