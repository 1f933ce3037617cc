// Package payment 支付网关客户端
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// StatusSuccess 网关返回的唯一成功标识，其余状态一律视为失败
const StatusSuccess = "success"

// ErrDeclined 网关拒绝
var ErrDeclined = errors.New("payment declined")

// Gateway 支付网关
type Gateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
}

// ChargeRequest 扣款请求
type ChargeRequest struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
	Reference      string          `json:"reference"`
	Details        map[string]any  `json:"details,omitempty"`
}

// ChargeResult 扣款结果
type ChargeResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

// Succeeded 是否成功
func (r *ChargeResult) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// RefundRequest 退款请求。TransactionID 为空时网关按 ChargeIdempotencyKey 定位扣款，
// 扣款未发生则视为成功
type RefundRequest struct {
	IdempotencyKey       string          `json:"idempotency_key"`
	TransactionID        string          `json:"transaction_id,omitempty"`
	ChargeIdempotencyKey string          `json:"charge_idempotency_key,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	Reason               string          `json:"reason"`
}

// RefundResult 退款结果
type RefundResult struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// Succeeded 是否成功
func (r *RefundResult) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}
