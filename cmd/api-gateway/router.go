package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/config"
	"github.com/dumeirei/storefront-backend/internal/common/metrics"
	adminHandler "github.com/dumeirei/storefront-backend/internal/handler/admin"
	distributionHandler "github.com/dumeirei/storefront-backend/internal/handler/distribution"
	marketingHandler "github.com/dumeirei/storefront-backend/internal/handler/marketing"
	orderHandler "github.com/dumeirei/storefront-backend/internal/handler/order"
	walletHandler "github.com/dumeirei/storefront-backend/internal/handler/wallet"
	"github.com/dumeirei/storefront-backend/internal/middleware"
)

// setupRouter 设置路由
func setupRouter(r *gin.Engine, cfg *config.Config, app *application, db *gorm.DB, redisClient *redis.Client) {
	skipPaths := []string{"/health", "/ready", "/ping", cfg.Metrics.Path}

	// 全局中间件
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(skipPaths...))
	}
	r.Use(middleware.Logging(&middleware.LoggingConfig{SkipPaths: skipPaths}))
	if cfg.Metrics.Enabled {
		r.Use(metrics.GetMetrics().Middleware())
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))

	if !cfg.IsRelease() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	orderH := orderHandler.NewHandler(app.orderService)
	couponH := marketingHandler.NewCouponHandler(app.couponService)
	walletH := walletHandler.NewHandler(app.walletService)
	referralH := distributionHandler.NewHandler(app.inviteService)
	adminOrderH := adminHandler.NewOrderHandler(app.orderService)
	financeH := adminHandler.NewFinanceHandler(app.walletService)
	commissionH := adminHandler.NewCommissionHandler(app.settingsService)

	v1 := r.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		v1.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Client: app.redis,
			Limit:  cfg.RateLimit.Limit,
			Window: time.Duration(cfg.RateLimit.Window) * time.Second,
		}))
	}

	// 用户接口
	user := v1.Group("")
	user.Use(middleware.UserAuth(app.jwtManager))
	{
		user.POST("/orders", orderH.CreateOrder)
		user.GET("/orders", orderH.ListOrders)
		user.GET("/orders/:id", orderH.GetOrder)

		user.POST("/coupons/validate", couponH.Validate)

		user.GET("/wallet", walletH.GetSummary)
		user.GET("/wallet/transactions", walletH.ListTransactions)
		user.POST("/wallet/withdrawals", walletH.RequestWithdrawal)

		user.GET("/referral", referralH.GetInviteInfo)
		user.GET("/referral/qrcode", referralH.GetQRCode)
	}

	// 管理接口
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminAuth(app.jwtManager))
	{
		admin.GET("/orders", adminOrderH.List)
		admin.GET("/orders/:id", adminOrderH.Get)
		admin.PUT("/orders/:id/status", adminOrderH.UpdateStatus)

		admin.POST("/coupons", couponH.Create)

		admin.GET("/withdrawals", financeH.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", financeH.Approve)
		admin.POST("/withdrawals/:id/reject", financeH.Reject)
		admin.GET("/withdrawals/:id/account", financeH.RevealAccount)
		admin.POST("/wallet/reconcile", financeH.Reconcile)

		admin.GET("/commission/settings", commissionH.Get)
		admin.PUT("/commission/settings", commissionH.Update)
		admin.GET("/commission/settings/history", commissionH.History)
	}
}
