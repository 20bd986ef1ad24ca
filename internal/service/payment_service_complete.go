package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ZeoXel/SUNSTUDIO/internal/cache"
	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"

	"gorm.io/gorm"
)

// CompletePayment 将订单置为已支付并入账余额与积分。
// 条件写入保证同一订单并发完成时恰好入账一次；重复调用为幂等空操作。
// 返回本次调用是否真正完成了入账。
func (s *PaymentService) CompletePayment(orderNo, transactionID string, paidAt time.Time) (bool, error) {
	log := paymentLogger(
		"order_no", orderNo,
		"transaction_id", transactionID,
	)

	credited := false
	err := s.orderRepo.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)
		userRepo := s.userRepo.WithTx(tx)

		transitioned, err := orderRepo.MarkPaid(orderNo, transactionID, paidAt)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
		}
		if !transitioned {
			return nil
		}

		order, err := orderRepo.GetByOrderNo(orderNo)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
		}
		if order == nil {
			return ErrOrderNotFound
		}

		user, err := userRepo.GetForUpdate(tx, order.UserID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
		}
		if user == nil {
			return ErrUserNotFound
		}

		if err := userRepo.Credit(tx, user.ID, order.Amount, order.Points); err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
		}

		entry := &models.BalanceLedgerEntry{
			UserID:        user.ID,
			OrderNo:       order.OrderNo,
			EntryType:     constants.LedgerEntryTypeRecharge,
			Amount:        order.Amount,
			Points:        order.Points,
			BalanceBefore: user.Balance,
			BalanceAfter:  user.Balance + order.Amount,
			PointsBefore:  user.Points,
			PointsAfter:   user.Points + order.Points,
			Remark:        order.Description,
		}
		if err := ledgerRepo.Append(entry); err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
		}

		credited = true
		return nil
	})
	if err != nil {
		log.Errorw("payment_complete_failed", "error", err)
		return false, err
	}
	if credited {
		_ = cache.InvalidateOrderStatus(context.Background(), orderNo)
		log.Infow("payment_completed")
	} else {
		log.Infow("payment_complete_idempotent_skip")
	}
	return credited, nil
}

// FailExpiredOrder 将超时未支付的订单关闭。已支付订单不受影响。
func (s *PaymentService) FailExpiredOrder(orderNo string) (bool, error) {
	log := paymentLogger("order_no", orderNo)
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return false, err
	}
	if order == nil {
		log.Warnw("payment_expire_order_not_found")
		return false, nil
	}
	if order.IsTerminal() {
		return false, nil
	}

	transitioned, err := s.orderRepo.MarkFailed(orderNo)
	if err != nil {
		log.Errorw("payment_expire_failed", "error", err)
		return false, err
	}
	if transitioned {
		_ = cache.InvalidateOrderStatus(context.Background(), orderNo)
		log.Infow("payment_order_expired")
	}
	return transitioned, nil
}

// ExpireOverdueOrders 兜底扫描：关闭超过有效期仍在等待支付的订单
func (s *PaymentService) ExpireOverdueOrders(limit int) (int, error) {
	before := time.Now().Add(-time.Duration(s.expireMinutes()) * time.Minute)
	orders, err := s.orderRepo.ListExpiredPending(before, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, order := range orders {
		transitioned, err := s.FailExpiredOrder(order.OrderNo)
		if err != nil {
			paymentLogger("order_no", order.OrderNo).Errorw("payment_expire_sweep_failed", "error", err)
			continue
		}
		if transitioned {
			expired++
		}
	}
	if expired > 0 {
		paymentLogger().Infow("payment_expire_sweep_done", "expired", expired)
	}
	return expired, nil
}
