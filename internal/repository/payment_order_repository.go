package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
	"github.com/ZeoXel/SUNSTUDIO/internal/models"

	"gorm.io/gorm"
)

// PaymentOrderRepository 支付订单数据访问接口
type PaymentOrderRepository interface {
	Create(order *models.PaymentOrder) error
	GetByOrderNo(orderNo string) (*models.PaymentOrder, error)
	ListByUser(userID uint, limit, offset int) ([]models.PaymentOrder, int64, error)
	MarkPaid(orderNo, transactionID string, paidAt time.Time) (bool, error)
	MarkFailed(orderNo string) (bool, error)
	ListExpiredPending(before time.Time, limit int) ([]models.PaymentOrder, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormPaymentOrderRepository
}

// GormPaymentOrderRepository GORM 实现
type GormPaymentOrderRepository struct {
	db *gorm.DB
}

// NewPaymentOrderRepository 创建支付订单仓库
func NewPaymentOrderRepository(db *gorm.DB) *GormPaymentOrderRepository {
	return &GormPaymentOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentOrderRepository) WithTx(tx *gorm.DB) *GormPaymentOrderRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentOrderRepository{db: tx}
}

// Transaction 在数据库事务内执行 fn
func (r *GormPaymentOrderRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// Create 创建订单
func (r *GormPaymentOrderRepository) Create(order *models.PaymentOrder) error {
	return r.db.Create(order).Error
}

// GetByOrderNo 根据订单号获取订单，未找到返回 nil
func (r *GormPaymentOrderRepository) GetByOrderNo(orderNo string) (*models.PaymentOrder, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var order models.PaymentOrder
	if err := r.db.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByUser 获取用户充值订单列表（按创建时间倒序）
func (r *GormPaymentOrderRepository) ListByUser(userID uint, limit, offset int) ([]models.PaymentOrder, int64, error) {
	query := r.db.Model(&models.PaymentOrder{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var orders []models.PaymentOrder
	if err := query.Order("id desc").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// MarkPaid 条件更新 pending -> paid，返回本次调用是否完成了迁移。
// 条件写入保证并发回调下恰好一次成功。
func (r *GormPaymentOrderRepository) MarkPaid(orderNo, transactionID string, paidAt time.Time) (bool, error) {
	result := r.db.Model(&models.PaymentOrder{}).
		Where("order_no = ? AND status = ?", strings.TrimSpace(orderNo), constants.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":         constants.OrderStatusPaid,
			"transaction_id": strings.TrimSpace(transactionID),
			"paid_at":        paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkFailed 条件更新 pending -> failed，已支付订单不受影响。
func (r *GormPaymentOrderRepository) MarkFailed(orderNo string) (bool, error) {
	result := r.db.Model(&models.PaymentOrder{}).
		Where("order_no = ? AND status = ?", strings.TrimSpace(orderNo), constants.OrderStatusPending).
		Update("status", constants.OrderStatusFailed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListExpiredPending 获取创建时间早于 before 且仍处于 pending 的订单
func (r *GormPaymentOrderRepository) ListExpiredPending(before time.Time, limit int) ([]models.PaymentOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.PaymentOrder
	if err := r.db.Where("status = ? AND created_at < ?", constants.OrderStatusPending, before).
		Order("id asc").Limit(limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
