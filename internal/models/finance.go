package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction 钱包账本流水，写入后不可修改，更正通过反向流水完成
type Transaction struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64           `gorm:"index;not null" json:"user_id"`
	OrderID          *int64          `gorm:"index" json:"order_id,omitempty"`
	Type             string          `gorm:"type:varchar(30);index;not null" json:"type"`
	Amount           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	BalanceAfter     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"balance_after"`
	Description      string          `gorm:"type:varchar(255);not null;default:''" json:"description"`
	Status           *string         `gorm:"type:varchar(20);index" json:"status,omitempty"`
	Level            *int            `json:"level,omitempty"`
	AccountEncrypted *string         `gorm:"type:text" json:"-"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (Transaction) TableName() string {
	return "transactions"
}

// TransactionType 流水类型
const (
	TransactionTypeCommission        = "commission"
	TransactionTypePurchase          = "purchase"
	TransactionTypeWithdrawal        = "withdrawal"
	TransactionTypeWithdrawalRequest = "withdrawal_request"
	TransactionTypeDeposit           = "deposit"
	TransactionTypeRefund            = "refund"
)

// TransactionStatus 提现申请状态
const (
	TransactionStatusPending  = "pending"
	TransactionStatusApproved = "approved"
	TransactionStatusRejected = "rejected"
)

// IsTransactionType 判断流水类型是否合法
func IsTransactionType(t string) bool {
	switch t {
	case TransactionTypeCommission, TransactionTypePurchase, TransactionTypeWithdrawal,
		TransactionTypeWithdrawalRequest, TransactionTypeDeposit, TransactionTypeRefund:
		return true
	}
	return false
}

// AffectsBalance 该类型流水是否计入余额（提现申请仅为意向，不计入）
func AffectsBalance(t string) bool {
	return t != TransactionTypeWithdrawalRequest
}
