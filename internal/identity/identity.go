package identity

import "context"

// Provider is the boundary to the managed identity service. The engine
// never handles credentials itself: signup forwards them here and every
// other operation only resolves a bearer token to a user id.
type Provider interface {
	// VerifyToken resolves an opaque bearer token to the subject user id.
	VerifyToken(ctx context.Context, token string) (uid string, err error)
	// CreateUser provisions a new account and returns its id.
	CreateUser(ctx context.Context, email, password, displayName string) (uid string, err error)
}
