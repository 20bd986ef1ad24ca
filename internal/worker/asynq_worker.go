package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/ZeoXel/SUNSTUDIO/internal/logger"
	"github.com/ZeoXel/SUNSTUDIO/internal/provider"
	"github.com/ZeoXel/SUNSTUDIO/internal/queue"
	"github.com/ZeoXel/SUNSTUDIO/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentExpire, c.handlePaymentExpire)
	mux.HandleFunc(queue.TaskPaymentReconcile, c.handlePaymentReconcile)
}

// handlePaymentExpire 在订单到达超时时刻后关闭仍未支付的订单。
// 已入账或已关闭的订单直接跳过，任务不重试。
func (c *Consumer) handlePaymentExpire(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_expire_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_expire_unmarshal_failed", "error", err)
		return err
	}
	orderNo := strings.TrimSpace(payload.OrderNo)
	if orderNo == "" {
		logger.Debugw("worker_payment_expire_skip_empty_order_no")
		return nil
	}
	if c.PaymentService == nil {
		logger.Warnw("worker_payment_expire_skip_service_nil", "order_no", orderNo)
		return nil
	}
	closed, err := c.PaymentService.FailExpiredOrder(orderNo)
	if err != nil {
		logger.Warnw("worker_payment_expire_failed", "order_no", orderNo, "error", err)
		return err
	}
	if closed {
		logger.Infow("worker_payment_expire_closed", "order_no", orderNo)
	}
	return nil
}

// handlePaymentReconcile 对 pending 订单发起网关主动查询，补偿丢失的回调。
func (c *Consumer) handlePaymentReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_reconcile_unmarshal_failed", "error", err)
		return err
	}
	orderNo := strings.TrimSpace(payload.OrderNo)
	if orderNo == "" {
		logger.Debugw("worker_payment_reconcile_skip_empty_order_no")
		return nil
	}
	if c.PaymentService == nil || c.PaymentOrderRepo == nil {
		logger.Warnw("worker_payment_reconcile_skip_service_nil", "order_no", orderNo)
		return nil
	}
	order, err := c.PaymentOrderRepo.GetByOrderNo(orderNo)
	if err != nil {
		logger.Warnw("worker_payment_reconcile_fetch_failed", "order_no", orderNo, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_payment_reconcile_skip_order_not_found", "order_no", orderNo)
		return nil
	}
	if order.IsTerminal() {
		logger.Debugw("worker_payment_reconcile_skip_terminal", "order_no", orderNo, "status", order.Status)
		return nil
	}
	updated, err := c.PaymentService.ReconcileOrder(ctx, order)
	if err != nil {
		if errors.Is(err, service.ErrPaymentChannelNotConfigured) {
			logger.Warnw("worker_payment_reconcile_skip_channel_disabled", "order_no", orderNo, "pay_type", order.PaymentMethod)
			return nil
		}
		logger.Warnw("worker_payment_reconcile_failed", "order_no", orderNo, "error", err)
		return err
	}
	if updated != nil && updated.Status != order.Status {
		logger.Infow("worker_payment_reconcile_settled",
			"order_no", orderNo,
			"from", order.Status,
			"to", updated.Status,
		)
	}
	return nil
}
