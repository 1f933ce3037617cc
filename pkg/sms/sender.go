// Package sms 短信服务
package sms

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sender 短信发送器接口，template 为业务模板键，由实现映射为服务商模板编码
type Sender interface {
	Send(ctx context.Context, phone, template string, params map[string]string) error
}

// 业务模板键
const (
	TemplateOrderCreated       = "order_created"
	TemplateOrderStatusChanged = "order_status_changed"
	TemplateWithdrawalReviewed = "withdrawal_reviewed"
	TemplateRefundFailedAlert  = "refund_failed_alert"
	TemplateNewOrderAlert      = "new_order_alert"
)

// MockSender 模拟短信发送器（用于开发/测试），并发安全
type MockSender struct {
	mu       sync.Mutex
	messages []MockMessage
	// Err 非空时 Send 返回该错误
	Err error
}

// MockMessage 模拟消息
type MockMessage struct {
	Phone    string
	Template string
	Params   map[string]string
	SentAt   time.Time
}

// NewMockSender 创建模拟发送器
func NewMockSender() *MockSender {
	return &MockSender{}
}

// Send 模拟发送
func (s *MockSender) Send(ctx context.Context, phone, template string, params map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if phone == "" {
		return fmt.Errorf("手机号为空")
	}
	s.messages = append(s.messages, MockMessage{
		Phone:    phone,
		Template: template,
		Params:   params,
		SentAt:   time.Now(),
	})
	return nil
}

// Messages 返回已发送消息副本
func (s *MockSender) Messages() []MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MockMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear 清空消息记录
func (s *MockSender) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
