package notification

import (
	"context"
	"time"

	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/metrics"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
)

// RelayConfig 投递器配置
type RelayConfig struct {
	BatchSize   int
	MaxAttempts int
	// SendTimeout 单条投递超时
	SendTimeout time.Duration
	// BaseBackoff 首次重试间隔，之后按次数翻倍
	BaseBackoff time.Duration
}

func (c *RelayConfig) normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Second
	}
}

// Relay 发件箱投递器，失败只记录不影响业务
type Relay struct {
	repo       *repository.OutboxRepository
	dispatcher Dispatcher
	cfg        RelayConfig
	kick       chan struct{}
	now        func() time.Time
}

// NewRelay 创建投递器
func NewRelay(repo *repository.OutboxRepository, dispatcher Dispatcher, cfg RelayConfig) *Relay {
	cfg.normalize()
	return &Relay{
		repo:       repo,
		dispatcher: dispatcher,
		cfg:        cfg,
		kick:       make(chan struct{}, 1),
		now:        time.Now,
	}
}

// Kick 通知投递器尽快处理，不阻塞调用方
func (r *Relay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run 响应 Kick 持续投递，直到 ctx 结束。周期性补偿由调度器调用 RunOnce 完成
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.kick:
			if _, err := r.RunOnce(ctx); err != nil {
				logger.Warn("outbox relay failed", logger.Err(err))
			}
		}
	}
}

// RunOnce 投递一批到期事件，返回成功发送的条数
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	now := r.now()
	events, err := r.repo.FetchDue(ctx, now, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, ev := range events {
		// 租约期内其他投递者不会再取到这条
		claimed, err := r.repo.Claim(ctx, ev.ID, ev.Attempts, now.Add(r.cfg.SendTimeout*2))
		if err != nil {
			return sent, err
		}
		if !claimed {
			continue
		}
		attempts := ev.Attempts + 1

		if err := r.deliver(ctx, ev); err != nil {
			final := attempts >= r.cfg.MaxAttempts
			next := now.Add(r.backoff(attempts))
			if markErr := r.repo.MarkRetry(ctx, ev.ID, err.Error(), next, final); markErr != nil {
				logger.Error("outbox mark retry failed", logger.Int64("event_id", ev.ID), logger.Err(markErr))
			}
			result := "retry"
			if final {
				result = "failed"
				logger.Error("outbox event dropped",
					logger.String("event_type", ev.EventType),
					logger.String("channel", ev.Channel),
					logger.Int("attempts", attempts),
					logger.Err(err),
				)
			} else {
				logger.Warn("outbox dispatch failed",
					logger.String("event_type", ev.EventType),
					logger.String("channel", ev.Channel),
					logger.Int("attempts", attempts),
					logger.Err(err),
				)
			}
			metrics.GetMetrics().RecordOutboxDispatch(ev.Channel, result)
			continue
		}

		if err := r.repo.MarkSent(ctx, ev.ID); err != nil {
			logger.Error("outbox mark sent failed", logger.Int64("event_id", ev.ID), logger.Err(err))
			continue
		}
		metrics.GetMetrics().RecordOutboxDispatch(ev.Channel, "sent")
		sent++
	}
	return sent, nil
}

func (r *Relay) deliver(ctx context.Context, ev *models.OutboxEvent) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	defer cancel()
	data := map[string]interface{}(ev.Payload)
	return r.dispatcher.Notify(sendCtx, ev.Channel, ev.Recipient, ev.Template, data)
}

// backoff 第 n 次失败后的等待时间
func (r *Relay) backoff(attempts int) time.Duration {
	d := r.cfg.BaseBackoff
	for i := 1; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	return d
}
