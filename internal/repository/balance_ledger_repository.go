package repository

import (
	"errors"
	"strings"

	"github.com/ZeoXel/SUNSTUDIO/internal/models"

	"gorm.io/gorm"
)

// BalanceLedgerRepository 余额流水数据访问接口。流水只追加，不提供更新和删除。
type BalanceLedgerRepository interface {
	Append(entry *models.BalanceLedgerEntry) error
	GetByOrderNo(orderNo string) (*models.BalanceLedgerEntry, error)
	ListByUser(userID uint, limit, offset int) ([]models.BalanceLedgerEntry, int64, error)
	WithTx(tx *gorm.DB) *GormBalanceLedgerRepository
}

// GormBalanceLedgerRepository GORM 实现
type GormBalanceLedgerRepository struct {
	db *gorm.DB
}

// NewBalanceLedgerRepository 创建余额流水仓库
func NewBalanceLedgerRepository(db *gorm.DB) *GormBalanceLedgerRepository {
	return &GormBalanceLedgerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBalanceLedgerRepository) WithTx(tx *gorm.DB) *GormBalanceLedgerRepository {
	if tx == nil {
		return r
	}
	return &GormBalanceLedgerRepository{db: tx}
}

// Append 追加一条流水
func (r *GormBalanceLedgerRepository) Append(entry *models.BalanceLedgerEntry) error {
	return r.db.Create(entry).Error
}

// GetByOrderNo 根据订单号获取流水，未找到返回 nil
func (r *GormBalanceLedgerRepository) GetByOrderNo(orderNo string) (*models.BalanceLedgerEntry, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var entry models.BalanceLedgerEntry
	if err := r.db.Where("order_no = ?", orderNo).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListByUser 获取用户流水列表（按创建时间倒序）
func (r *GormBalanceLedgerRepository) ListByUser(userID uint, limit, offset int) ([]models.BalanceLedgerEntry, int64, error) {
	query := r.db.Model(&models.BalanceLedgerEntry{}).Where("user_id = ?", userID)

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
	var entries []models.BalanceLedgerEntry
	if err := query.Order("id desc").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
