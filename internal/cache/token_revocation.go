package cache

import (
	"context"
	"fmt"
	"time"
)

func tokenRevocationKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

// RevokeToken 将 token 的 jti 拉黑，保留到 token 自然过期
func RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if !Enabled() || jti == "" || ttl <= 0 {
		return nil
	}
	return redisClient.Set(ctx, buildKey(tokenRevocationKey(jti)), "1", ttl).Err()
}

// IsTokenRevoked 判断 token 是否已被拉黑
func IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if !Enabled() || jti == "" {
		return false, nil
	}
	n, err := redisClient.Exists(ctx, buildKey(tokenRevocationKey(jti))).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
