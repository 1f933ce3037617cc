package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionSetting 佣金配置，更新时插入新行并停用旧行以保留历史
type CommissionSetting struct {
	ID             int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	NumberOfLevels int               `gorm:"not null;default:0" json:"number_of_levels"`
	Percentages    []decimal.Decimal `gorm:"type:text;serializer:json" json:"percentages"`
	IsActive       bool              `gorm:"index;not null" json:"is_active"`
	UpdatedBy      *int64            `json:"updated_by,omitempty"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (CommissionSetting) TableName() string {
	return "commission_settings"
}

// MaxCommissionLevels 最大分佣层级
const MaxCommissionLevels = 10
