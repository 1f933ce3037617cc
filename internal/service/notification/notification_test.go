package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
	"github.com/dumeirei/storefront-backend/internal/testutil"
	"github.com/dumeirei/storefront-backend/pkg/broker"
	"github.com/dumeirei/storefront-backend/pkg/sms"
)

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []*broker.Event
}

func (p *fakePublisher) Publish(ctx context.Context, key string, event *broker.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return nil
}

type flakyDispatcher struct {
	err   error
	calls int
}

func (d *flakyDispatcher) Notify(ctx context.Context, channel, recipient, template string, data map[string]interface{}) error {
	d.calls++
	return d.err
}

func TestChannelDispatcher(t *testing.T) {
	sender := sms.NewMockSender()
	pub := &fakePublisher{}
	d := NewChannelDispatcher().
		Register(models.OutboxChannelSMS, NewSMSNotifier(sender, 0)).
		Register(models.OutboxChannelEvent, NewEventNotifier(pub)).
		Register(models.OutboxChannelLog, LogNotifier{})
	ctx := context.Background()

	t.Run("短信通道", func(t *testing.T) {
		err := d.Notify(ctx, models.OutboxChannelSMS, "13800000000", sms.TemplateOrderCreated, map[string]interface{}{"order_no": "SO1", "amount": 900000})
		require.NoError(t, err)
		msgs := sender.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "SO1", msgs[0].Params["order_no"])
		assert.Equal(t, "900000", msgs[0].Params["amount"])
	})

	t.Run("短信收件人为空", func(t *testing.T) {
		err := d.Notify(ctx, models.OutboxChannelSMS, "", sms.TemplateOrderCreated, nil)
		assert.Error(t, err)
	})

	t.Run("事件通道", func(t *testing.T) {
		require.NoError(t, d.Notify(ctx, models.OutboxChannelEvent, "SO1", models.OutboxEventOrderCreated, map[string]interface{}{"x": 1}))
		require.Len(t, pub.events, 1)
		assert.Equal(t, "SO1", pub.keys[0])
		assert.Equal(t, models.OutboxEventOrderCreated, pub.events[0].Type)
		assert.NotEmpty(t, pub.events[0].ID)
	})

	t.Run("日志通道", func(t *testing.T) {
		assert.NoError(t, d.Notify(ctx, models.OutboxChannelLog, "", "x", nil))
	})

	t.Run("未注册通道", func(t *testing.T) {
		assert.Error(t, d.Notify(ctx, "email", "a@b.c", "x", nil))
	})
}

func TestOutbox_EnqueueFollowsTransaction(t *testing.T) {
	db := testutil.NewTestDB(t)
	outbox := NewOutbox(repository.NewOutboxRepository(db))
	ctx := context.Background()
	msg := &Message{
		EventType: models.OutboxEventOrderCreated,
		Channel:   models.OutboxChannelSMS,
		Recipient: "13800000000",
		Template:  sms.TemplateOrderCreated,
		Data:      map[string]interface{}{"order_no": "SO1"},
	}

	t.Run("事务回滚不留记录", func(t *testing.T) {
		err := db.Transaction(func(tx *gorm.DB) error {
			require.NoError(t, outbox.Enqueue(ctx, tx, msg))
			return errors.New("rollback")
		})
		require.Error(t, err)
		assert.Equal(t, int64(0), testutil.Count(t, db, &models.OutboxEvent{}))
	})

	t.Run("事务提交后可见", func(t *testing.T) {
		err := db.Transaction(func(tx *gorm.DB) error {
			return outbox.Enqueue(ctx, tx, msg, msg)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), testutil.Count(t, db, &models.OutboxEvent{}))
	})
}

func TestRelay_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("投递成功", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		repo := repository.NewOutboxRepository(db)
		sender := sms.NewMockSender()
		relay := NewRelay(repo, NewChannelDispatcher().Register(models.OutboxChannelSMS, NewSMSNotifier(sender, 0)), RelayConfig{})

		require.NoError(t, NewOutbox(repo).Enqueue(ctx, nil, &Message{
			EventType: models.OutboxEventOrderCreated, Channel: models.OutboxChannelSMS,
			Recipient: "13800000000", Template: sms.TemplateOrderCreated,
		}))

		sent, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
		assert.Len(t, sender.Messages(), 1)

		n, err := repo.CountByStatus(ctx, models.OutboxStatusSent)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		// 已发送的不再重复投递
		sent, err = relay.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, sent)
	})

	t.Run("失败重试直至上限", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		repo := repository.NewOutboxRepository(db)
		d := &flakyDispatcher{err: errors.New("gateway down")}
		relay := NewRelay(repo, d, RelayConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond})
		clock := time.Now()
		relay.now = func() time.Time { return clock }

		require.NoError(t, NewOutbox(repo).Enqueue(ctx, nil, &Message{
			EventType: models.OutboxEventOrderCreated, Channel: models.OutboxChannelLog, Template: "x",
		}))

		sent, err := relay.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, sent)
		pending, _ := repo.CountByStatus(ctx, models.OutboxStatusPending)
		assert.Equal(t, int64(1), pending)

		clock = clock.Add(time.Minute)
		_, err = relay.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, d.calls)

		failed, _ := repo.CountByStatus(ctx, models.OutboxStatusFailed)
		assert.Equal(t, int64(1), failed)

		var ev models.OutboxEvent
		require.NoError(t, db.First(&ev).Error)
		assert.Equal(t, 2, ev.Attempts)
		require.NotNil(t, ev.LastError)
		assert.Equal(t, "gateway down", *ev.LastError)
	})
}

func TestRelay_Kick(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewOutboxRepository(db)
	relay := NewRelay(repo, logDispatcher(), RelayConfig{})

	// 多次 Kick 不阻塞
	relay.Kick()
	relay.Kick()
	relay.Kick()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelay_Backoff(t *testing.T) {
	r := NewRelay(nil, nil, RelayConfig{BaseBackoff: time.Second})
	assert.Equal(t, time.Second, r.backoff(1))
	assert.Equal(t, 4*time.Second, r.backoff(3))
	assert.LessOrEqual(t, r.backoff(100), 2*time.Hour)
}

func logDispatcher() Dispatcher {
	return NewChannelDispatcher().Register(models.OutboxChannelLog, LogNotifier{})
}
