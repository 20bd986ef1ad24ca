package models

import (
	"time"

	"github.com/ZeoXel/SUNSTUDIO/internal/constants"
)

// PaymentOrder 充值支付订单
//
// 状态只允许 pending -> paid / pending -> failed 单向迁移，
// paid 与 failed 为终态，任何写入都必须带状态条件。
type PaymentOrder struct {
	ID            uint       `gorm:"primarykey" json:"id"`                           // 主键
	OrderNo       string     `gorm:"uniqueIndex;not null" json:"order_no"`           // 商户订单号
	UserID        uint       `gorm:"index;not null" json:"user_id"`                  // 用户ID
	Amount        int64      `gorm:"not null" json:"amount"`                         // 充值金额（分）
	Points        int64      `gorm:"not null" json:"points"`                         // 到账积分（含赠送）
	PaymentMethod string     `gorm:"not null" json:"payment_method"`                 // 支付方式（alipay/wechat）
	Status        string     `gorm:"index;not null;default:'pending'" json:"status"` // 订单状态
	Description   string     `gorm:"default:''" json:"description"`                  // 订单描述
	TransactionID string     `gorm:"index;default:''" json:"transaction_id"`         // 第三方交易号
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt     time.Time  `json:"updated_at"`                                     // 更新时间
	PaidAt        *time.Time `gorm:"index" json:"paid_at"`                           // 支付时间
}

// TableName 指定表名
func (PaymentOrder) TableName() string {
	return "payment_orders"
}

// IsTerminal 判断订单是否已进入终态
func (o *PaymentOrder) IsTerminal() bool {
	return o.Status != constants.OrderStatusPending
}
