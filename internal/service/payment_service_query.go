package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ZeoXel/SUNSTUDIO/internal/cache"
	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"
	"github.com/ZeoXel/SUNSTUDIO/internal/payment/alipay"
)

// OrderStatusData 订单状态查询返回
type OrderStatusData struct {
	OrderNo       string     `json:"order_no"`
	Status        string     `json:"status"`
	PayType       string     `json:"pay_type"`
	Amount        int64      `json:"amount"`
	AmountYuan    string     `json:"amount_yuan"`
	Points        int64      `json:"points"`
	Description   string     `json:"description"`
	TransactionID string     `json:"transaction_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

func buildOrderStatusData(order *models.PaymentOrder) *OrderStatusData {
	return &OrderStatusData{
		OrderNo:       order.OrderNo,
		Status:        order.Status,
		PayType:       order.PaymentMethod,
		Amount:        order.Amount,
		AmountYuan:    models.FormatCentsToYuan(order.Amount),
		Points:        order.Points,
		Description:   order.Description,
		TransactionID: order.TransactionID,
		CreatedAt:     order.CreatedAt,
		PaidAt:        order.PaidAt,
	}
}

// GetOrderStatus 查询用户充值订单状态。
// pending 订单会先向网关主动对账，补偿丢失的异步通知；超过有效期则就地关闭。
func (s *PaymentService) GetOrderStatus(ctx context.Context, userID uint, orderNo string) (*OrderStatusData, error) {
	if userID == 0 || orderNo == "" {
		return nil, ErrPaymentInvalid
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// 轮询削峰：缓存命中且归属当前用户时直接返回
	var cached cachedOrderStatus
	if hit, err := cache.GetOrderStatus(ctx, orderNo, &cached); err == nil && hit && cached.UserID == userID {
		return cached.Data, nil
	}

	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}

	if order.Status == constants.OrderStatusPending {
		refreshed, reconcileErr := s.ReconcileOrder(ctx, order)
		if reconcileErr != nil {
			paymentLogger("order_no", orderNo).Warnw("payment_reconcile_failed", "error", reconcileErr)
		} else if refreshed != nil {
			order = refreshed
		}
	}

	data := buildOrderStatusData(order)
	if err := cache.SetOrderStatus(ctx, orderNo, cachedOrderStatus{UserID: order.UserID, Data: data}, order.IsTerminal()); err != nil {
		paymentLogger("order_no", orderNo).Warnw("order_status_cache_set_failed", "error", err)
	}
	return data, nil
}

// cachedOrderStatus 带归属校验的订单状态缓存载荷
type cachedOrderStatus struct {
	UserID uint             `json:"user_id"`
	Data   *OrderStatusData `json:"data"`
}

// ReconcileOrder 向支付网关主动查询 pending 订单并同步本地状态。
// 网关确认成功则入账；网关关闭或订单超时则本地关闭。
func (s *PaymentService) ReconcileOrder(ctx context.Context, order *models.PaymentOrder) (*models.PaymentOrder, error) {
	if order == nil || order.Status != constants.OrderStatusPending {
		return order, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log := paymentLogger(
		"order_no", order.OrderNo,
		"pay_type", order.PaymentMethod,
	)

	switch order.PaymentMethod {
	case constants.PaymentMethodAlipay:
		if s.alipayClient == nil {
			return order, ErrPaymentChannelNotConfigured
		}
		result, err := s.alipayClient.QueryTrade(ctx, order.OrderNo)
		if err != nil {
			// 网关查不到（未拉起支付）不算错误，走本地过期判断
			log.Infow("payment_reconcile_query_miss", "error", err)
			return s.reconcileLocalExpiry(order)
		}
		if alipay.IsTradeSuccess(result.TradeStatus) {
			if _, err := s.CompletePayment(order.OrderNo, result.TradeNo, time.Now()); err != nil {
				return order, err
			}
			return s.orderRepo.GetByOrderNo(order.OrderNo)
		}
		if alipay.IsTradeClosed(result.TradeStatus) {
			if _, err := s.FailExpiredOrder(order.OrderNo); err != nil {
				return order, err
			}
			return s.orderRepo.GetByOrderNo(order.OrderNo)
		}
		return s.reconcileLocalExpiry(order)

	case constants.PaymentMethodWechat:
		if s.wechatClient == nil {
			return order, ErrPaymentChannelNotConfigured
		}
		result, err := s.wechatClient.QueryOrderByOutTradeNo(ctx, order.OrderNo)
		if err != nil {
			log.Infow("payment_reconcile_query_miss", "error", err)
			return s.reconcileLocalExpiry(order)
		}
		switch result.Status {
		case constants.OrderStatusPaid:
			paidAt := time.Now()
			if result.PaidAt != nil {
				paidAt = *result.PaidAt
			}
			if _, err := s.CompletePayment(order.OrderNo, result.TransactionID, paidAt); err != nil {
				return order, err
			}
			return s.orderRepo.GetByOrderNo(order.OrderNo)
		case constants.OrderStatusFailed:
			if _, err := s.FailExpiredOrder(order.OrderNo); err != nil {
				return order, err
			}
			return s.orderRepo.GetByOrderNo(order.OrderNo)
		}
		return s.reconcileLocalExpiry(order)
	}

	return order, nil
}

// reconcileLocalExpiry 网关未确认成功时的本地兜底：超过有效期就地关闭
func (s *PaymentService) reconcileLocalExpiry(order *models.PaymentOrder) (*models.PaymentOrder, error) {
	deadline := order.CreatedAt.Add(time.Duration(s.expireMinutes()) * time.Minute)
	if time.Now().Before(deadline) {
		return order, nil
	}
	if _, err := s.FailExpiredOrder(order.OrderNo); err != nil {
		return order, err
	}
	return s.orderRepo.GetByOrderNo(order.OrderNo)
}

// OrderListResult 订单列表返回
type OrderListResult struct {
	Items []OrderStatusData `json:"items"`
	Total int64             `json:"total"`
}

// ListOrders 分页获取用户充值订单（按创建时间倒序）
func (s *PaymentService) ListOrders(userID uint, limit, offset int) (*OrderListResult, error) {
	if userID == 0 {
		return nil, ErrPaymentInvalid
	}
	orders, total, err := s.orderRepo.ListByUser(userID, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]OrderStatusData, 0, len(orders))
	for i := range orders {
		items = append(items, *buildOrderStatusData(&orders[i]))
	}
	return &OrderListResult{Items: items, Total: total}, nil
}
