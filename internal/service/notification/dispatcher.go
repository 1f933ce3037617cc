// Package notification 通知分发：业务事务写入发件箱，提交后由投递器异步发送
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/pkg/broker"
	"github.com/dumeirei/storefront-backend/pkg/sms"
)

// Dispatcher 通知分发器
type Dispatcher interface {
	Notify(ctx context.Context, channel, recipient, template string, data map[string]interface{}) error
}

// Notifier 单一通道的发送者
type Notifier interface {
	Notify(ctx context.Context, recipient, template string, data map[string]interface{}) error
}

// ChannelDispatcher 按通道路由到具体发送者
type ChannelDispatcher struct {
	notifiers map[string]Notifier
}

// NewChannelDispatcher 创建通道分发器
func NewChannelDispatcher() *ChannelDispatcher {
	return &ChannelDispatcher{notifiers: make(map[string]Notifier)}
}

// Register 注册通道
func (d *ChannelDispatcher) Register(channel string, n Notifier) *ChannelDispatcher {
	d.notifiers[channel] = n
	return d
}

// Notify 分发通知
func (d *ChannelDispatcher) Notify(ctx context.Context, channel, recipient, template string, data map[string]interface{}) error {
	n, ok := d.notifiers[channel]
	if !ok {
		return fmt.Errorf("notification channel %q not registered", channel)
	}
	return n.Notify(ctx, recipient, template, data)
}

// SMSNotifier 短信通道
type SMSNotifier struct {
	sender  sms.Sender
	limiter *rate.Limiter
}

// NewSMSNotifier 创建短信通道，perSecond<=0 表示不限速
func NewSMSNotifier(sender sms.Sender, perSecond float64) *SMSNotifier {
	n := &SMSNotifier{sender: sender}
	if perSecond > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return n
}

// Notify 发送短信，数据字段按字符串传给模板
func (n *SMSNotifier) Notify(ctx context.Context, recipient, template string, data map[string]interface{}) error {
	if recipient == "" {
		return fmt.Errorf("sms recipient is empty")
	}
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	params := make(map[string]string, len(data))
	for k, v := range data {
		params[k] = fmt.Sprint(v)
	}
	return n.sender.Send(ctx, recipient, template, params)
}

// Publisher 事件发布接口（broker.Producer 实现）
type Publisher interface {
	Publish(ctx context.Context, key string, event *broker.Event) error
}

// EventNotifier 事件通道，recipient 作为分区键
type EventNotifier struct {
	publisher Publisher
}

// NewEventNotifier 创建事件通道
func NewEventNotifier(p Publisher) *EventNotifier {
	return &EventNotifier{publisher: p}
}

// Notify 发布事件
func (n *EventNotifier) Notify(ctx context.Context, recipient, template string, data map[string]interface{}) error {
	return n.publisher.Publish(ctx, recipient, &broker.Event{
		ID:         uuid.NewString(),
		Type:       template,
		OccurredAt: time.Now(),
		Data:       data,
	})
}

// LogNotifier 只写日志，用于未配置外部通道的环境
type LogNotifier struct{}

// Notify 记录日志
func (LogNotifier) Notify(ctx context.Context, recipient, template string, data map[string]interface{}) error {
	logger.Info("notification",
		logger.String("recipient", recipient),
		logger.String("template", template),
		logger.Any("data", data),
	)
	return nil
}

// Message 待投递的通知
type Message struct {
	EventType string
	Channel   string
	Recipient string
	Template  string
	Data      map[string]interface{}
}

// toEvent 转换为发件箱记录
func (m *Message) toEvent(now time.Time) *models.OutboxEvent {
	return &models.OutboxEvent{
		EventID:     uuid.NewString(),
		EventType:   m.EventType,
		Channel:     m.Channel,
		Recipient:   m.Recipient,
		Template:    m.Template,
		Payload:     models.JSON(m.Data),
		Status:      models.OutboxStatusPending,
		AvailableAt: now,
	}
}
