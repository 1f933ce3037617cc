package scheduler

import (
	"context"
	"time"

	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/service/wallet"
)

// OutboxRunner 发件箱投递
type OutboxRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// Reconciler 钱包对账
type Reconciler interface {
	Reconcile(ctx context.Context, batchSize int) (*wallet.ReconcileReport, error)
}

// TaskHandler 任务处理器
type TaskHandler struct {
	relay      OutboxRunner
	reconciler Reconciler
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(relay OutboxRunner, reconciler Reconciler) *TaskHandler {
	return &TaskHandler{relay: relay, reconciler: reconciler}
}

// DispatchOutbox 补偿投递未及时发送的通知
func (h *TaskHandler) DispatchOutbox(ctx context.Context) error {
	sent, err := h.relay.RunOnce(ctx)
	if err != nil {
		return err
	}
	if sent > 0 {
		logger.Info("outbox dispatched", logger.Int("sent", sent))
	}
	return nil
}

// ReconcileWallets 比对钱包余额与流水
func (h *TaskHandler) ReconcileWallets(ctx context.Context) error {
	report, err := h.reconciler.Reconcile(ctx, 500)
	if err != nil {
		return err
	}
	if len(report.Drifts) > 0 {
		logger.Error("wallet reconciliation found drift",
			logger.Int("checked", report.Checked),
			logger.Int("drifts", len(report.Drifts)),
		)
	}
	return nil
}

// SetupTasks 设置所有任务
func SetupTasks(s *Scheduler, h *TaskHandler, outboxInterval time.Duration) error {
	if outboxInterval <= 0 {
		outboxInterval = 30 * time.Second
	}
	if err := s.AddTask("DispatchOutbox", outboxInterval, h.DispatchOutbox); err != nil {
		return err
	}
	// 每小时对账一次
	return s.AddTask("ReconcileWallets", time.Hour, h.ReconcileWallets)
}
