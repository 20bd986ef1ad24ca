package cache

import (
	"context"
	"fmt"
	"time"
)

// 终态订单缓存较久，pending 缓存仅用于压平轮询风暴
const (
	orderStatusTerminalTTL = 10 * time.Minute
	orderStatusPendingTTL  = 2 * time.Second
)

func orderStatusKey(orderNo string) string {
	return fmt.Sprintf("order:status:%s", orderNo)
}

// GetOrderStatus 读取订单状态缓存
func GetOrderStatus(ctx context.Context, orderNo string, dest interface{}) (bool, error) {
	return GetJSON(ctx, orderStatusKey(orderNo), dest)
}

// SetOrderStatus 写入订单状态缓存，terminal 决定缓存时长
func SetOrderStatus(ctx context.Context, orderNo string, value interface{}, terminal bool) error {
	ttl := orderStatusPendingTTL
	if terminal {
		ttl = orderStatusTerminalTTL
	}
	return SetJSON(ctx, orderStatusKey(orderNo), value, ttl)
}

// InvalidateOrderStatus 订单状态变更后清除缓存
func InvalidateOrderStatus(ctx context.Context, orderNo string) error {
	return Del(ctx, orderStatusKey(orderNo))
}
