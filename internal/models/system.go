package models

import (
	"time"
)

// OutboxEvent 通知发件箱，与业务数据在同一事务内写入，提交后异步投递
type OutboxEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"event_id"`
	EventType   string    `gorm:"type:varchar(50);not null" json:"event_type"`
	Channel     string    `gorm:"type:varchar(20);not null" json:"channel"`
	Recipient   string    `gorm:"type:varchar(100);not null;default:''" json:"recipient"`
	Template    string    `gorm:"type:varchar(50);not null" json:"template"`
	Payload     JSON      `gorm:"type:jsonb" json:"payload,omitempty"`
	Status      string    `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	LastError   *string   `gorm:"type:text" json:"last_error,omitempty"`
	AvailableAt time.Time `gorm:"index;not null" json:"available_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// OutboxStatus 发件箱状态
const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

// OutboxChannel 投递通道
const (
	OutboxChannelSMS   = "sms"
	OutboxChannelEvent = "event"
	OutboxChannelLog   = "log"
)

// OutboxEventType 事件类型
const (
	OutboxEventOrderCreated       = "order.created"
	OutboxEventOrderStatusChanged = "order.status_changed"
	OutboxEventWithdrawalReviewed = "withdrawal.reviewed"
	OutboxEventRefundFailed       = "payment.refund_failed"
)
