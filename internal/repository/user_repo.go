package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/database"
	"github.com/dumeirei/storefront-backend/internal/models"
)

// UserRepository 用户仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 根据 ID 获取用户，tx 可为 nil
func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db, tx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetForUpdate 获取用户（加锁）
func (r *UserRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.User, error) {
	var user models.User
	if err := database.ForUpdate(tx.WithContext(ctx)).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByReferralCode 根据推荐码获取用户
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AdjustBalance 按增量调整余额，调用方须已持有该用户行锁
func (r *UserRepository) AdjustBalance(ctx context.Context, tx *gorm.DB, id int64, delta decimal.Decimal) error {
	result := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListIDsAfter 按 ID 递增分批列出用户 ID
func (r *UserRepository) ListIDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
