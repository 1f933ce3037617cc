package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon 优惠券模型
type Coupon struct {
	ID            int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Code          string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	DiscountType  string           `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue decimal.Decimal  `gorm:"type:decimal(14,2);not null" json:"discount_value"`
	ExpiryDate    time.Time        `gorm:"not null" json:"expiry_date"`
	UsageLimit    *int             `json:"usage_limit,omitempty"`
	UsageCount    int              `gorm:"not null;default:0" json:"usage_count"`
	MinOrderValue *decimal.Decimal `gorm:"type:decimal(14,2)" json:"min_order_value,omitempty"`
	IsActive      bool             `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Coupon) TableName() string {
	return "coupons"
}

// CouponDiscountType 优惠券类型
const (
	CouponTypePercentage = "percentage" // 百分比折扣
	CouponTypeFixed      = "fixed"      // 固定金额
)

// HasCapacity 是否还有可用次数
func (c *Coupon) HasCapacity() bool {
	return c.UsageLimit == nil || c.UsageCount < *c.UsageLimit
}

// CouponRedemption 优惠券核销记录
type CouponRedemption struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CouponID       int64           `gorm:"index;not null" json:"coupon_id"`
	UserID         int64           `gorm:"index;not null" json:"user_id"`
	OrderID        int64           `gorm:"uniqueIndex;not null" json:"order_id"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"discount_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (CouponRedemption) TableName() string {
	return "coupon_redemptions"
}
