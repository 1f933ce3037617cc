package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 订单模型，创建后只允许状态流转，不删除
type Order struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo           string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	UserID            int64           `gorm:"index;not null" json:"user_id"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	DiscountAmount    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"discount_amount"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	Status            string          `gorm:"type:varchar(40);index;not null" json:"status"`
	PaymentMethod     string          `gorm:"type:varchar(20);not null" json:"payment_method"`
	AppliedCouponCode *string         `gorm:"type:varchar(50)" json:"applied_coupon_code,omitempty"`
	PaymentDetails    JSON            `gorm:"type:jsonb" json:"payment_details,omitempty"`
	PaymentTxID       *string         `gorm:"type:varchar(64)" json:"payment_tx_id,omitempty"`
	ShippingAddress   JSON            `gorm:"type:jsonb" json:"shipping_address,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName 表名
func (Order) TableName() string {
	return "orders"
}

// OrderStatus 订单状态
const (
	OrderStatusPendingConfirmation        = "pending_confirmation"
	OrderStatusProcessing                 = "processing"
	OrderStatusPendingCheckConfirmation   = "pending_check_confirmation"
	OrderStatusPendingInstallmentApproval = "pending_installment_approval"
	OrderStatusCheckApproved              = "check_approved"
	OrderStatusCheckRejected              = "check_rejected"
	OrderStatusInstallmentApproved        = "installment_approved"
	OrderStatusInstallmentRejected        = "installment_rejected"
	OrderStatusShipped                    = "shipped"
	OrderStatusDelivered                  = "delivered"
	OrderStatusCancelled                  = "cancelled"
)

// PaymentMethod 支付方式
const (
	PaymentMethodCash         = "cash"
	PaymentMethodInstallments = "installments"
	PaymentMethodCheck        = "check"
)

// OrderItem 订单项（下单时的商品快照）
type OrderItem struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64           `gorm:"index;not null" json:"order_id"`
	ProductID   int64           `gorm:"not null" json:"product_id"`
	ProductName string          `gorm:"type:varchar(200);not null" json:"product_name"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"line_total"`
}

// TableName 表名
func (OrderItem) TableName() string {
	return "order_items"
}
