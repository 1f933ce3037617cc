package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockGateway 模拟支付网关（开发/测试）
type MockGateway struct {
	mu sync.Mutex

	// ChargeStatus 扣款返回状态，默认 success
	ChargeStatus string
	ChargeErr    error
	RefundErr    error
	// ChargeHook 在扣款时调用，可用于模拟阻塞/超时
	ChargeHook func(ctx context.Context) error

	Charges []*ChargeRequest
	Refunds []*RefundRequest
}

// NewMockGateway 创建模拟网关
func NewMockGateway() *MockGateway {
	return &MockGateway{ChargeStatus: StatusSuccess}
}

// Charge 模拟扣款
func (g *MockGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if g.ChargeHook != nil {
		if err := g.ChargeHook(ctx); err != nil {
			return nil, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.Charges = append(g.Charges, req)
	if g.ChargeErr != nil {
		return nil, g.ChargeErr
	}
	return &ChargeResult{
		TransactionID: fmt.Sprintf("TXN-%s", uuid.NewString()[:8]),
		Status:        g.ChargeStatus,
	}, nil
}

// Refund 模拟退款
func (g *MockGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Refunds = append(g.Refunds, req)
	if g.RefundErr != nil {
		return nil, g.RefundErr
	}
	return &RefundResult{RefundID: "RF-" + uuid.NewString()[:8], Status: StatusSuccess}, nil
}

// ChargeCount 扣款次数
func (g *MockGateway) ChargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Charges)
}

// RefundCount 退款次数
func (g *MockGateway) RefundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Refunds)
}
