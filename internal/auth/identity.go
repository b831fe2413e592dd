package auth

import (
	"context"
	"time"

	"github.com/sarpras-lapor/apiserver/types"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID    int
	Username  string
	Role      types.Role
	SessionID string
	ExpiresAt time.Time
}

// IsAdmin reports whether the identity has the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == types.RoleAdmin
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || identity.UserID < 1 {
		return Identity{}, false
	}
	return identity, true
}
