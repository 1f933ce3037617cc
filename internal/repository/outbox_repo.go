package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/models"
)

// OutboxRepository 通知发件箱仓储
type OutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository 创建发件箱仓储
func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create 写入事件，通常在业务事务内调用
func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, events ...*models.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return conn(ctx, r.db, tx).Create(&events).Error
}

// FetchDue 获取到期待投递的事件
func (r *OutboxRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]*models.OutboxEvent, error) {
	var events []*models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", models.OutboxStatusPending, now).
		Order("id").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Claim 将事件标记为投递中（尝试次数加一），返回是否抢占成功，避免多个投递者重复发送
func (r *OutboxRepository) Claim(ctx context.Context, id int64, attempts int, lease time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ? AND attempts = ?", id, models.OutboxStatusPending, attempts).
		Updates(map[string]interface{}{
			"attempts":     attempts + 1,
			"available_at": lease,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkSent 标记已投递
func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": models.OutboxStatusSent, "last_error": nil}).Error
}

// MarkRetry 记录失败并安排重试；final 为 true 时标记为最终失败
func (r *OutboxRepository) MarkRetry(ctx context.Context, id int64, errMsg string, next time.Time, final bool) error {
	status := models.OutboxStatusPending
	if final {
		status = models.OutboxStatusFailed
	}
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"last_error":   errMsg,
			"available_at": next,
		}).Error
}

// CountByStatus 按状态统计
func (r *OutboxRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
