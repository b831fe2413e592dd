package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sarpras-lapor/apiserver/config"
)

func TestRevokeRequiresSessionID(t *testing.T) {
	store := NewRevocationStore(nil)
	if err := store.Revoke(context.Background(), "  ", time.Now().Add(time.Hour)); err == nil {
		t.Fatal("expected error for empty session id")
	}
}

func TestRevokeSkipsExpiredSessions(t *testing.T) {
	store := NewRevocationStore(nil)
	// A nil client would panic if Revoke tried to write.
	if err := store.Revoke(context.Background(), "sid", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("expected no-op for expired session, got %v", err)
	}
}

func TestRevokedKey(t *testing.T) {
	if got := revokedKey("abc"); got != "session:revoked:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewRedisClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisClient(ctx, config.RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}
