package notification

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
)

// Outbox 事务内写入通知
type Outbox struct {
	repo *repository.OutboxRepository
}

// NewOutbox 创建发件箱
func NewOutbox(repo *repository.OutboxRepository) *Outbox {
	return &Outbox{repo: repo}
}

// Enqueue 在调用方事务内写入通知，事务回滚则通知一并消失
func (o *Outbox) Enqueue(ctx context.Context, tx *gorm.DB, msgs ...*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now()
	events := make([]*models.OutboxEvent, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, m.toEvent(now))
	}
	return o.repo.Create(ctx, tx, events...)
}
