package order

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/config"
	"github.com/dumeirei/storefront-backend/internal/common/jwt"
	"github.com/dumeirei/storefront-backend/internal/middleware"
	"github.com/dumeirei/storefront-backend/internal/repository"
	"github.com/dumeirei/storefront-backend/internal/service/distribution"
	"github.com/dumeirei/storefront-backend/internal/service/marketing"
	"github.com/dumeirei/storefront-backend/internal/service/notification"
	orderService "github.com/dumeirei/storefront-backend/internal/service/order"
	"github.com/dumeirei/storefront-backend/internal/service/wallet"
	"github.com/dumeirei/storefront-backend/internal/testutil"
	"github.com/dumeirei/storefront-backend/pkg/payment"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
	jwt    *jwt.Manager
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.NewTestDB(t)
	userRepo := repository.NewUserRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	outbox := notification.NewOutbox(repository.NewOutboxRepository(db))
	walletSvc := wallet.NewWalletService(db, userRepo, repository.NewTransactionRepository(db), outbox, nil, wallet.Options{})

	svc := orderService.NewOrderService(orderService.Deps{
		DB:          db,
		OrderRepo:   repository.NewOrderRepository(db),
		ProductRepo: repository.NewProductRepository(db),
		UserRepo:    userRepo,
		CouponRepo:  couponRepo,
		Coupons:     marketing.NewCouponService(db, couponRepo, 2),
		Walker:      distribution.NewReferralWalker(userRepo),
		Commission:  distribution.NewCommissionService(walletSvc, 2),
		Settings:    distribution.NewSettingsService(repository.NewCommissionSettingRepository(db), config.CommissionConfig{}),
		Outbox:      outbox,
		Gateway:     payment.NewMockGateway(),
	}, orderService.Options{CashChargeOnCheckout: true})

	manager := jwt.NewManager(&jwt.Config{Secret: "test-secret", AccessExpireTime: time.Hour, Issuer: "test"})
	h := NewHandler(svc)

	r := gin.New()
	g := r.Group("/api/v1", middleware.UserAuth(manager))
	g.POST("/orders", h.CreateOrder)
	g.GET("/orders", h.ListOrders)
	g.GET("/orders/:id", h.GetOrder)

	return &testServer{db: db, router: r, jwt: manager}
}

func (s *testServer) do(t *testing.T, method, path string, userID int64, body interface{}) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, _, err := s.jwt.GenerateAccessToken(userID, jwt.RoleCustomer)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func orderBody(productID int64, coupon string) gin.H {
	return gin.H{
		"items":            []gin.H{{"product_id": productID, "quantity": 1}},
		"payment_method":   "cash",
		"coupon_code":      coupon,
		"shipping_address": gin.H{"city": "杭州", "line1": "文三路 1 号"},
	}
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	s := setupServer(t)
	buyer := testutil.CreateUser(t, s.db, nil, 0)
	product := testutil.CreateProduct(t, s.db, "按摩椅", 10000)
	testutil.CreatePercentCoupon(t, s.db, "ONCE", 10, 1)

	t.Run("未登录", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPost, "/api/v1/orders", 0, orderBody(product.ID, ""))
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("参数错误", func(t *testing.T) {
		code, resp := s.do(t, http.MethodPost, "/api/v1/orders", buyer.ID, gin.H{"payment_method": "bitcoin"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, 400, resp.Code)
	})

	t.Run("使用优惠券下单", func(t *testing.T) {
		code, resp := s.do(t, http.MethodPost, "/api/v1/orders", buyer.ID, orderBody(product.ID, "ONCE"))
		assert.Equal(t, http.StatusOK, code)
		require.Equal(t, 0, resp.Code, resp.Message)

		var order struct {
			TotalAmount decimal.Decimal `json:"total_amount"`
			Status      string          `json:"status"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &order))
		assert.True(t, decimal.NewFromInt(9000).Equal(order.TotalAmount), order.TotalAmount.String())
		assert.Equal(t, "processing", order.Status)
	})

	t.Run("优惠券已用完返回原因", func(t *testing.T) {
		_, resp := s.do(t, http.MethodPost, "/api/v1/orders", buyer.ID, orderBody(product.ID, "ONCE"))
		assert.Equal(t, 9005, resp.Code)
		var data struct {
			Reason string `json:"reason"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, marketing.ReasonCapacityExhausted, data.Reason)
	})
}

func TestOrderHandler_ListAndGet(t *testing.T) {
	s := setupServer(t)
	buyer := testutil.CreateUser(t, s.db, nil, 0)
	other := testutil.CreateUser(t, s.db, nil, 0)
	product := testutil.CreateProduct(t, s.db, "足浴盆", 3000)

	_, resp := s.do(t, http.MethodPost, "/api/v1/orders", buyer.ID, orderBody(product.ID, ""))
	require.Equal(t, 0, resp.Code, resp.Message)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))

	t.Run("我的订单", func(t *testing.T) {
		_, resp := s.do(t, http.MethodGet, "/api/v1/orders?page=1&page_size=10", buyer.ID, nil)
		require.Equal(t, 0, resp.Code)
		var page struct {
			Total int64 `json:"total"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		assert.Equal(t, int64(1), page.Total)
	})

	t.Run("订单详情", func(t *testing.T) {
		_, resp := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", created.ID), buyer.ID, nil)
		assert.Equal(t, 0, resp.Code)
	})

	t.Run("他人订单不可见", func(t *testing.T) {
		_, resp := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", created.ID), other.ID, nil)
		assert.Equal(t, 5000, resp.Code)
	})

	t.Run("非法 ID", func(t *testing.T) {
		code, _ := s.do(t, http.MethodGet, "/api/v1/orders/abc", buyer.ID, nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}
