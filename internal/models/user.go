// Package models 定义数据模型
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User 用户模型
type User struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Phone           *string         `gorm:"type:varchar(20);uniqueIndex" json:"phone,omitempty"`
	Nickname        string          `gorm:"type:varchar(50);not null;default:''" json:"nickname"`
	WalletBalance   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"wallet_balance"`
	InvitedByUserID *int64          `gorm:"index" json:"invited_by_user_id,omitempty"`
	ReferralCode    string          `gorm:"type:varchar(16);uniqueIndex;not null" json:"referral_code"`
	Role            string          `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`
	Status          int8            `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// UserStatus 用户状态
const (
	UserStatusDisabled = 0 // 禁用
	UserStatusActive   = 1 // 正常
)

// 用户角色
const (
	UserRoleCustomer = "customer"
	UserRoleAdmin    = "admin"
)

// JSON 自定义 JSON 类型
type JSON map[string]interface{}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return nil
	}
}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Unmarshal 将 JSON 值反序列化到目标结构
func (j JSON) Unmarshal(target interface{}) error {
	if j == nil {
		return nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}
