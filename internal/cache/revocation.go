package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedKeyPrefix = "session:revoked:"

// RevocationStore keeps revoked session ids in Redis until the token they
// belong to would have expired anyway.
type RevocationStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRevocationStore(rdb *redis.Client) *RevocationStore {
	return &RevocationStore{rdb: rdb, now: time.Now}
}

// Revoke marks sessionID as ended. Sessions already past until are ignored.
func (s *RevocationStore) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session id is required")
	}
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedKey(sessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	exists, err := s.rdb.Exists(ctx, revokedKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return exists > 0, nil
}

func revokedKey(sessionID string) string {
	return revokedKeyPrefix + sessionID
}
