package distribution

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/config"
	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
)

// Settings 佣金配置快照，下单事务开始时读取一次后显式传入分配流程
type Settings struct {
	NumberOfLevels int               `json:"number_of_levels"`
	Percentages    []decimal.Decimal `json:"percentages"`
}

// SettingsService 佣金配置
type SettingsService struct {
	repo     *repository.CommissionSettingRepository
	defaults config.CommissionConfig
}

// NewSettingsService 创建佣金配置服务，defaults 在数据库无配置时生效
func NewSettingsService(repo *repository.CommissionSettingRepository, defaults config.CommissionConfig) *SettingsService {
	return &SettingsService{repo: repo, defaults: defaults}
}

// Snapshot 读取当前配置
func (s *SettingsService) Snapshot(ctx context.Context, tx *gorm.DB) (*Settings, error) {
	setting, err := s.repo.GetActive(ctx, tx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.defaultSettings(), nil
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	snap := &Settings{NumberOfLevels: setting.NumberOfLevels, Percentages: setting.Percentages}
	if err := ValidateSettings(snap.NumberOfLevels, snap.Percentages); err != nil {
		return nil, apperrors.ErrCommissionIntegrity.WithError(err)
	}
	return snap, nil
}

func (s *SettingsService) defaultSettings() *Settings {
	pcts := make([]decimal.Decimal, 0, len(s.defaults.DefaultPercentages))
	for _, p := range s.defaults.DefaultPercentages {
		pcts = append(pcts, decimal.NewFromFloat(p))
	}
	levels := s.defaults.DefaultLevels
	if levels > len(pcts) {
		levels = len(pcts)
	}
	return &Settings{NumberOfLevels: levels, Percentages: pcts[:levels]}
}

// UpdateSettingsRequest 更新佣金配置请求
type UpdateSettingsRequest struct {
	NumberOfLevels int               `json:"number_of_levels"`
	Percentages    []decimal.Decimal `json:"percentages"`
}

// Update 写入新配置，旧配置保留为历史
func (s *SettingsService) Update(ctx context.Context, adminID int64, req *UpdateSettingsRequest) (*models.CommissionSetting, error) {
	if err := ValidateSettings(req.NumberOfLevels, req.Percentages); err != nil {
		return nil, apperrors.ErrCommissionSettings.WithMessage(err.Error())
	}

	setting := &models.CommissionSetting{
		NumberOfLevels: req.NumberOfLevels,
		Percentages:    req.Percentages,
		UpdatedBy:      &adminID,
	}
	if err := s.repo.Replace(ctx, setting); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	logger.Info("commission settings updated",
		logger.AdminID(adminID),
		logger.Int("levels", req.NumberOfLevels),
		logger.Any("percentages", req.Percentages),
	)
	return setting, nil
}

// History 配置变更历史
func (s *SettingsService) History(ctx context.Context, limit int) ([]*models.CommissionSetting, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := s.repo.ListHistory(ctx, limit)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return list, nil
}

// ValidateSettings 层级 0~10，比例个数等于层级数，每个比例在 [0,100]
func ValidateSettings(levels int, percentages []decimal.Decimal) error {
	if levels < 0 || levels > models.MaxCommissionLevels {
		return fmt.Errorf("层级数必须在 0 到 %d 之间", models.MaxCommissionLevels)
	}
	if len(percentages) != levels {
		return fmt.Errorf("比例个数(%d)与层级数(%d)不一致", len(percentages), levels)
	}
	for i, p := range percentages {
		if p.IsNegative() || p.GreaterThan(hundred) {
			return fmt.Errorf("第 %d 级比例必须在 0 到 100 之间", i+1)
		}
	}
	return nil
}
