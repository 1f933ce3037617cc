// Package scheduler 提供定时任务调度
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/dumeirei/storefront-backend/internal/common/logger"
)

// Scheduler 定时任务调度器
type Scheduler struct {
	cron    *gocron.Scheduler
	tasks   []*Task
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	// mu 保护 stopped，保证 Stop 开始等待后不再有任务登记到 wg
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// Task 定时任务
type Task struct {
	Name     string
	Interval time.Duration
	Handler  func(ctx context.Context) error
}

// NewScheduler 创建调度器
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    gocron.NewScheduler(time.UTC),
		tasks:   make([]*Task, 0),
		ctx:     ctx,
		cancel:  cancel,
		timeout: 5 * time.Minute,
	}
}

// AddTask 添加任务，同一任务不会并发执行
func (s *Scheduler) AddTask(name string, interval time.Duration, handler func(ctx context.Context) error) error {
	task := &Task{Name: name, Interval: interval, Handler: handler}
	_, err := s.cron.Every(interval).SingletonMode().Tag(name).Do(s.executeTask, task)
	if err != nil {
		return err
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// Start 启动调度器，任务立即执行一次
func (s *Scheduler) Start() {
	logger.Info("scheduler starting", logger.Int("tasks", len(s.tasks)))
	s.cron.StartAsync()
}

// Stop 停止调度器并等待执行中的任务结束，可重复调用
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	logger.Info("scheduler stopping")
	s.cancel()
	s.cron.Stop()
	s.wg.Wait()
	logger.Info("scheduler stopped")
}

// executeTask 执行任务
func (s *Scheduler) executeTask(task *Task) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := task.Handler(ctx); err != nil {
		logger.Warn("scheduled task failed", logger.String("task", task.Name), logger.Err(err))
		return
	}
	logger.Debug("scheduled task completed", logger.String("task", task.Name), logger.Latency(time.Since(start)))
}
