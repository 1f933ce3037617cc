package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPGateway 通过 HTTP JSON 接口访问外部支付网关
type HTTPGateway struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPGateway 创建 HTTP 网关客户端。超时由调用方 context 控制。
func NewHTTPGateway(endpoint, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   60 * time.Second,
		},
	}
}

// Charge 扣款
func (g *HTTPGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	var res ChargeResult
	if err := g.post(ctx, "/charges", req.IdempotencyKey, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Refund 退款
func (g *HTTPGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error) {
	var res RefundResult
	if err := g.post(ctx, "/refunds", req.IdempotencyKey, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (g *HTTPGateway) post(ctx context.Context, path, idemKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	if idemKey != "" {
		httpReq.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("payment gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("payment gateway error: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
