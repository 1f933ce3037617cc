package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/models"
)

// CommissionSettingRepository 佣金配置仓储
type CommissionSettingRepository struct {
	db *gorm.DB
}

// NewCommissionSettingRepository 创建佣金配置仓储
func NewCommissionSettingRepository(db *gorm.DB) *CommissionSettingRepository {
	return &CommissionSettingRepository{db: db}
}

// GetActive 获取当前生效的配置，不存在返回 gorm.ErrRecordNotFound
func (r *CommissionSettingRepository) GetActive(ctx context.Context, tx *gorm.DB) (*models.CommissionSetting, error) {
	var setting models.CommissionSetting
	err := conn(ctx, r.db, tx).Where("is_active = ?", true).Order("id DESC").First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// Replace 停用旧配置并写入新配置
func (r *CommissionSettingRepository) Replace(ctx context.Context, setting *models.CommissionSetting) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.CommissionSetting{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		setting.ID = 0
		setting.IsActive = true
		return tx.Create(setting).Error
	})
}

// ListHistory 获取配置历史
func (r *CommissionSettingRepository) ListHistory(ctx context.Context, limit int) ([]*models.CommissionSetting, error) {
	var list []*models.CommissionSetting
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&list).Error
	return list, err
}
