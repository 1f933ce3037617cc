package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/database"
	"github.com/dumeirei/storefront-backend/internal/models"
)

// CouponRepository 优惠券仓储
type CouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠券仓储
func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

// NormalizeCode 优惠券码统一大写存储
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create 创建优惠券
func (r *CouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = NormalizeCode(coupon.Code)
	return r.db.WithContext(ctx).Create(coupon).Error
}

// ExistsByCode 优惠券码是否已存在
func (r *CouponRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Coupon{}).Where("code = ?", NormalizeCode(code)).Count(&n).Error
	return n > 0, err
}

// GetByID 根据 ID 获取优惠券
func (r *CouponRepository) GetByID(ctx context.Context, id int64) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).First(&coupon, id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// GetByCode 根据券码获取优惠券（不加锁）
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).Where("code = ?", NormalizeCode(code)).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// GetForUpdate 获取优惠券（加锁）
func (r *CouponRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := database.ForUpdate(tx.WithContext(ctx)).First(&coupon, id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// IncrementUsage 使用次数加一。条件更新保证即使行锁失效也不会超出上限，返回是否成功占用。
func (r *CouponRepository) IncrementUsage(ctx context.Context, tx *gorm.DB, id int64) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CreateRedemption 写入核销记录
func (r *CouponRepository) CreateRedemption(ctx context.Context, tx *gorm.DB, redemption *models.CouponRedemption) error {
	return conn(ctx, r.db, tx).Create(redemption).Error
}

// CountRedemptions 统计核销记录数
func (r *CouponRepository) CountRedemptions(ctx context.Context, couponID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CouponRedemption{}).Where("coupon_id = ?", couponID).Count(&n).Error
	return n, err
}
