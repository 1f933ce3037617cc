package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-backend/internal/service/wallet"
)

type fakeRelay struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRelay) RunOnce(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return 1, f.err
}

type fakeReconciler struct {
	report *wallet.ReconcileReport
	err    error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, batchSize int) (*wallet.ReconcileReport, error) {
	return f.report, f.err
}

func TestScheduler_RunsTasks(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.AddTask("count", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()

	stopped := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestScheduler_StopWaitsForRunningTask(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, s.AddTask("slow", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	}))

	s.Start()
	<-started
	s.Stop()
	assert.True(t, finished.Load())

	// 停止后的触发与重复 Stop 都是空操作
	var late atomic.Int32
	s.executeTask(&Task{Name: "late", Handler: func(ctx context.Context) error {
		late.Add(1)
		return nil
	}})
	assert.Zero(t, late.Load())
	assert.NotPanics(t, s.Stop)
}

func TestScheduler_FailingTaskKeepsRunning(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.AddTask("fail", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}))

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestTaskHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("投递发件箱", func(t *testing.T) {
		relay := &fakeRelay{}
		h := NewTaskHandler(relay, &fakeReconciler{report: &wallet.ReconcileReport{}})
		require.NoError(t, h.DispatchOutbox(ctx))
		assert.EqualValues(t, 1, relay.calls.Load())
	})

	t.Run("投递失败返回错误", func(t *testing.T) {
		h := NewTaskHandler(&fakeRelay{err: errors.New("db down")}, &fakeReconciler{})
		assert.Error(t, h.DispatchOutbox(ctx))
	})

	t.Run("对账发现差异不报错", func(t *testing.T) {
		report := &wallet.ReconcileReport{Checked: 3, Drifts: []*wallet.Drift{{UserID: 1}}}
		h := NewTaskHandler(&fakeRelay{}, &fakeReconciler{report: report})
		assert.NoError(t, h.ReconcileWallets(ctx))
	})

	t.Run("对账失败", func(t *testing.T) {
		h := NewTaskHandler(&fakeRelay{}, &fakeReconciler{err: errors.New("timeout")})
		assert.Error(t, h.ReconcileWallets(ctx))
	})
}

func TestSetupTasks(t *testing.T) {
	s := NewScheduler()
	h := NewTaskHandler(&fakeRelay{}, &fakeReconciler{report: &wallet.ReconcileReport{}})
	require.NoError(t, SetupTasks(s, h, 0))
	assert.Len(t, s.tasks, 2)
	assert.Equal(t, 30*time.Second, s.tasks[0].Interval)
}
