package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seq int64

// CreateUser 创建测试用户
func CreateUser(t *testing.T, db *gorm.DB, invitedBy *int64, balance int64) *models.User {
	t.Helper()
	n := atomic.AddInt64(&seq, 1)
	phone := fmt.Sprintf("138%08d", n)
	u := &models.User{
		Phone:           &phone,
		Nickname:        fmt.Sprintf("user%d", n),
		WalletBalance:   decimal.NewFromInt(balance),
		InvitedByUserID: invitedBy,
		ReferralCode:    fmt.Sprintf("R%07d", n),
		Role:            models.UserRoleCustomer,
		Status:          models.UserStatusActive,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateProduct 创建测试商品
func CreateProduct(t *testing.T, db *gorm.DB, name string, price int64) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: decimal.NewFromInt(price), IsOnSale: true}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreatePercentCoupon 创建百分比优惠券，limit 为 0 表示不限次数
func CreatePercentCoupon(t *testing.T, db *gorm.DB, code string, pct int64, limit int) *models.Coupon {
	t.Helper()
	c := &models.Coupon{
		Code:          code,
		DiscountType:  models.CouponTypePercentage,
		DiscountValue: decimal.NewFromInt(pct),
		ExpiryDate:    time.Now().Add(24 * time.Hour),
		IsActive:      true,
	}
	if limit > 0 {
		c.UsageLimit = &limit
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// SetCommission 写入生效的佣金配置
func SetCommission(t *testing.T, db *gorm.DB, pcts ...int64) {
	t.Helper()
	list := make([]decimal.Decimal, len(pcts))
	for i, p := range pcts {
		list[i] = decimal.NewFromInt(p)
	}
	require.NoError(t, db.Model(&models.CommissionSetting{}).Where("is_active = ?", true).Update("is_active", false).Error)
	require.NoError(t, db.Create(&models.CommissionSetting{
		NumberOfLevels: len(pcts),
		Percentages:    list,
		IsActive:       true,
	}).Error)
}

// Count 统计表行数
func Count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

// Int64Ptr 返回指针
func Int64Ptr(v int64) *int64 { return &v }
