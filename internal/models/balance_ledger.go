package models

import (
	"time"
)

// BalanceLedgerEntry 余额账变流水（追加写，不更新不删除）
type BalanceLedgerEntry struct {
	ID            uint      `gorm:"primarykey" json:"id"`                 // 主键
	UserID        uint      `gorm:"index;not null" json:"user_id"`        // 用户ID
	OrderNo       string    `gorm:"uniqueIndex;not null" json:"order_no"` // 关联订单号
	EntryType     string    `gorm:"not null" json:"entry_type"`           // 账变类型（recharge）
	Amount        int64     `gorm:"not null" json:"amount"`               // 账变金额（分）
	Points        int64     `gorm:"not null" json:"points"`               // 账变积分
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`       // 账变前余额（分）
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`        // 账变后余额（分）
	PointsBefore  int64     `gorm:"not null" json:"points_before"`        // 账变前积分
	PointsAfter   int64     `gorm:"not null" json:"points_after"`         // 账变后积分
	Remark        string    `gorm:"default:''" json:"remark"`             // 备注
	CreatedAt     time.Time `gorm:"index" json:"created_at"`              // 创建时间
}

// TableName 指定表名
func (BalanceLedgerEntry) TableName() string {
	return "balance_ledger_entries"
}
