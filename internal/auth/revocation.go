package auth

import (
	"context"
	"time"
)

// RevocationList records sessions that were ended before their token expired.
type RevocationList interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}
