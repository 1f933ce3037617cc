// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
type Metrics struct {
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	ordersTotal          *prometheus.CounterVec
	couponRedemptions    *prometheus.CounterVec
	commissionCredits    *prometheus.CounterVec
	commissionAmount     prometheus.Counter
	paymentsTotal        *prometheus.CounterVec
	outboxDispatch       *prometheus.CounterVec
	checkoutLocks        *prometheus.CounterVec
	ledgerDriftUsers     prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	initOnce       sync.Once
)

// Init 初始化指标收集器，重复调用返回同一实例
func Init(namespace string) *Metrics {
	initOnce.Do(func() {
		defaultMetrics = newMetrics(promauto.With(prometheus.DefaultRegisterer), namespace)
	})
	return defaultMetrics
}

// NewWithRegistry 使用独立注册表创建（测试用）
func NewWithRegistry(reg prometheus.Registerer, namespace string) *Metrics {
	return newMetrics(promauto.With(reg), namespace)
}

func newMetrics(f promauto.Factory, namespace string) *Metrics {
	if namespace == "" {
		namespace = "storefront"
	}
	return &Metrics{
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		httpRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
		ordersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order placement attempts by payment method and outcome",
		}, []string{"method", "result"}),
		couponRedemptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_redemptions_total",
			Help:      "Coupon redemption attempts by outcome",
		}, []string{"result"}),
		commissionCredits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_credits_total",
			Help:      "Commission credits written per referral level",
		}, []string{"level"}),
		commissionAmount: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_amount_total",
			Help:      "Sum of commission amounts credited",
		}),
		paymentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment gateway calls by operation and outcome",
		}, []string{"operation", "result"}),
		outboxDispatch: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dispatch_total",
			Help:      "Outbox deliveries by channel and outcome",
		}, []string{"channel", "result"}),
		checkoutLocks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_locks_total",
			Help:      "Per-user checkout lock acquisitions by outcome",
		}, []string{"result"}),
		ledgerDriftUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_drift_users",
			Help:      "Users whose wallet balance differs from the ledger sum at last reconciliation",
		}),
	}
}

// GetMetrics 获取默认指标收集器
func GetMetrics() *Metrics {
	return Init("")
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()

		c.Next()

		m.httpRequestsInFlight.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 Prometheus HTTP 处理器
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordOrder 记录下单结果
func (m *Metrics) RecordOrder(method, result string) {
	m.ordersTotal.WithLabelValues(method, result).Inc()
}

// RecordCouponRedemption 记录优惠券核销结果
func (m *Metrics) RecordCouponRedemption(result string) {
	m.couponRedemptions.WithLabelValues(result).Inc()
}

// RecordCommission 记录一笔佣金
func (m *Metrics) RecordCommission(level int, amount float64) {
	m.commissionCredits.WithLabelValues(strconv.Itoa(level)).Inc()
	m.commissionAmount.Add(amount)
}

// RecordPayment 记录支付网关调用
func (m *Metrics) RecordPayment(operation, result string) {
	m.paymentsTotal.WithLabelValues(operation, result).Inc()
}

// RecordOutboxDispatch 记录发件箱投递
func (m *Metrics) RecordOutboxDispatch(channel, result string) {
	m.outboxDispatch.WithLabelValues(channel, result).Inc()
}

// RecordCheckoutLock 记录下单锁获取
func (m *Metrics) RecordCheckoutLock(result string) {
	m.checkoutLocks.WithLabelValues(result).Inc()
}

// SetLedgerDrift 设置账本不一致用户数
func (m *Metrics) SetLedgerDrift(n int) {
	m.ledgerDriftUsers.Set(float64(n))
}
