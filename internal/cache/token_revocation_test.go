package cache

import (
	"context"
	"testing"
	"time"
)

func TestTokenRevocationNoopWhenDisabled(t *testing.T) {
	if err := InitRedis(nil); err != nil {
		t.Fatalf("InitRedis(nil) failed: %v", err)
	}

	ctx := context.Background()
	if err := RevokeToken(ctx, "jti-1", time.Hour); err != nil {
		t.Fatalf("RevokeToken should no-op without redis, got %v", err)
	}
	revoked, err := IsTokenRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked should no-op without redis, got %v", err)
	}
	if revoked {
		t.Fatalf("token should not be revoked without redis")
	}
}

func TestTokenRevocationKey(t *testing.T) {
	if got := tokenRevocationKey("abc"); got != "auth:revoked:abc" {
		t.Fatalf("tokenRevocationKey = %q", got)
	}
}
