package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"
	"github.com/ZeoXel/SUNSTUDIO/internal/payment/alipay"
	"github.com/ZeoXel/SUNSTUDIO/internal/payment/wechatpay"

	"go.uber.org/zap"
)

// alipayNotifyTimeLayout 支付宝 gmt_payment 时间格式
const alipayNotifyTimeLayout = "2006-01-02 15:04:05"

// HandleAlipayNotification 处理支付宝异步通知。
// 验签失败或金额不一致返回错误，由调用方回 fail；其余情况回 success 终止重试。
func (s *PaymentService) HandleAlipayNotification(form url.Values) (*models.PaymentOrder, error) {
	if s.alipayClient == nil {
		return nil, ErrPaymentChannelNotConfigured
	}

	orderNo := strings.TrimSpace(form.Get("out_trade_no"))
	tradeNo := strings.TrimSpace(form.Get("trade_no"))
	tradeStatus := strings.TrimSpace(form.Get("trade_status"))
	log := paymentLogger(
		"order_no", orderNo,
		"trade_no", tradeNo,
		"trade_status", tradeStatus,
	)

	if err := s.alipayClient.VerifyNotification(form); err != nil {
		log.Warnw("alipay_notify_verify_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentNotificationInvalid, err)
	}
	if orderNo == "" {
		log.Warnw("alipay_notify_missing_order_no")
		return nil, ErrPaymentNotificationInvalid
	}

	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if order == nil {
		log.Warnw("alipay_notify_order_not_found")
		return nil, ErrOrderNotFound
	}

	if !alipay.IsTradeSuccess(tradeStatus) {
		// 非成功状态（含 WAIT_BUYER_PAY/TRADE_CLOSED）直接确认，交由过期任务处理
		log.Infow("alipay_notify_ignored_status")
		return order, nil
	}

	notifiedCents, err := models.ParseYuanToCents(form.Get("total_amount"))
	if err != nil {
		log.Warnw("alipay_notify_amount_unparsable", "total_amount", form.Get("total_amount"))
		return nil, fmt.Errorf("%w: %v", ErrPaymentNotificationInvalid, err)
	}
	if diff := notifiedCents - order.Amount; diff > constants.AmountToleranceCents || diff < -constants.AmountToleranceCents {
		log.Warnw("alipay_notify_amount_mismatch",
			"order_amount", order.Amount,
			"notified_amount", notifiedCents,
		)
		return nil, ErrPaymentAmountMismatch
	}

	paidAt := time.Now()
	if raw := strings.TrimSpace(form.Get("gmt_payment")); raw != "" {
		if parsed, parseErr := time.ParseInLocation(alipayNotifyTimeLayout, raw, time.Local); parseErr == nil {
			paidAt = parsed
		}
	}

	return order, s.settleNotification(order, tradeNo, paidAt, log)
}

// HandleWechatNotification 处理微信支付回调（verify + 解密在渠道客户端内完成）
func (s *PaymentService) HandleWechatNotification(ctx context.Context, headers map[string]string, body []byte) (*models.PaymentOrder, error) {
	if s.wechatClient == nil {
		return nil, ErrPaymentChannelNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.wechatClient.VerifyAndDecodeWebhook(ctx, headers, body)
	if err != nil {
		paymentLogger().Warnw("wechat_notify_verify_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentNotificationInvalid, err)
	}

	if !wechatpay.IsTransactionSuccessEvent(result.EventType) {
		// 退款等非支付事件验签通过即确认，不做任何状态变更
		paymentLogger("event_type", result.EventType).Infow("wechat_notify_ignored_event")
		return nil, nil
	}

	log := paymentLogger(
		"order_no", result.OrderNo,
		"transaction_id", result.TransactionID,
		"trade_status", result.Status,
	)
	if result.OrderNo == "" {
		log.Warnw("wechat_notify_missing_order_no")
		return nil, ErrPaymentNotificationInvalid
	}

	order, err := s.orderRepo.GetByOrderNo(result.OrderNo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if order == nil {
		log.Warnw("wechat_notify_order_not_found")
		return nil, ErrOrderNotFound
	}

	if result.Status != constants.OrderStatusPaid {
		log.Infow("wechat_notify_ignored_status")
		return order, nil
	}

	if diff := result.AmountCents - order.Amount; diff > constants.AmountToleranceCents || diff < -constants.AmountToleranceCents {
		log.Warnw("wechat_notify_amount_mismatch",
			"order_amount", order.Amount,
			"notified_amount", result.AmountCents,
		)
		return nil, ErrPaymentAmountMismatch
	}

	paidAt := time.Now()
	if result.PaidAt != nil {
		paidAt = *result.PaidAt
	}

	return order, s.settleNotification(order, result.TransactionID, paidAt, log)
}

// settleNotification 回调确认后的统一入账入口。
// 已支付订单静默确认；已关闭订单记录迟到通知并确认，不再入账。
func (s *PaymentService) settleNotification(order *models.PaymentOrder, transactionID string, paidAt time.Time, log *zap.SugaredLogger) error {
	switch order.Status {
	case constants.OrderStatusPaid:
		log.Infow("payment_notify_idempotent_ack")
		return nil
	case constants.OrderStatusFailed:
		log.Warnw("payment_late_notification_terminal")
		return nil
	}
	if _, err := s.CompletePayment(order.OrderNo, transactionID, paidAt); err != nil {
		return err
	}
	return nil
}
