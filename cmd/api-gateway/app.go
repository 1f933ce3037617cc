package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/cache"
	"github.com/dumeirei/storefront-backend/internal/common/config"
	"github.com/dumeirei/storefront-backend/internal/common/crypto"
	"github.com/dumeirei/storefront-backend/internal/common/jwt"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/qrcode"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
	"github.com/dumeirei/storefront-backend/internal/service/distribution"
	"github.com/dumeirei/storefront-backend/internal/service/marketing"
	"github.com/dumeirei/storefront-backend/internal/service/notification"
	orderService "github.com/dumeirei/storefront-backend/internal/service/order"
	walletService "github.com/dumeirei/storefront-backend/internal/service/wallet"
	"github.com/dumeirei/storefront-backend/pkg/broker"
	"github.com/dumeirei/storefront-backend/pkg/payment"
	"github.com/dumeirei/storefront-backend/pkg/sms"
)

// application 进程内共享的服务实例
type application struct {
	jwtManager      *jwt.Manager
	redis           redis.UniversalClient
	relay           *notification.Relay
	orderService    *orderService.OrderService
	couponService   *marketing.CouponService
	walletService   *walletService.WalletService
	settingsService *distribution.SettingsService
	inviteService   *distribution.InviteService
}

func buildApp(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient, producer *broker.Producer) (*application, error) {
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.JWT.Secret,
		AccessExpireTime: cfg.JWT.AccessTokenDuration(),
		Issuer:           cfg.JWT.Issuer,
	})

	// 初始化仓储
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	settingRepo := repository.NewCommissionSettingRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	dispatcher, err := buildDispatcher(cfg, producer)
	if err != nil {
		return nil, err
	}
	outbox := notification.NewOutbox(outboxRepo)
	relay := notification.NewRelay(outboxRepo, dispatcher, notification.RelayConfig{
		BatchSize:   cfg.Business.Outbox.BatchSize,
		MaxAttempts: cfg.Business.Outbox.MaxAttempts,
	})

	var cipher *crypto.Cipher
	if cfg.Crypto.AESKey != "" {
		if cipher, err = crypto.NewCipher(cfg.Crypto.AESKey); err != nil {
			return nil, fmt.Errorf("init cipher: %w", err)
		}
	} else {
		logger.Warn("crypto.aes_key is empty, withdrawal accounts cannot be stored")
	}

	minWithdraw, err := decimal.NewFromString(cfg.Business.Wallet.MinWithdrawAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid business.wallet.min_withdraw_amount: %w", err)
	}
	walletSvc := walletService.NewWalletService(db, userRepo, txnRepo, outbox, cipher, walletService.Options{
		MinWithdrawAmount: minWithdraw,
		ReserveOnRequest:  cfg.Business.Wallet.ReserveOnRequest,
	})

	scale := cfg.Business.Coupon.AmountScale
	couponSvc := marketing.NewCouponService(db, couponRepo, scale)
	settingsSvc := distribution.NewSettingsService(settingRepo, cfg.Business.Commission)
	commissionSvc := distribution.NewCommissionService(walletSvc, scale)
	walker := distribution.NewReferralWalker(userRepo)

	gateway, err := buildGateway(cfg)
	if err != nil {
		return nil, err
	}

	orderCfg := cfg.Business.Order
	orderSvc := orderService.NewOrderService(orderService.Deps{
		DB:          db,
		OrderRepo:   orderRepo,
		ProductRepo: productRepo,
		UserRepo:    userRepo,
		CouponRepo:  couponRepo,
		Coupons:     couponSvc,
		Walker:      walker,
		Commission:  commissionSvc,
		Settings:    settingsSvc,
		Outbox:      outbox,
		Relay:       relay,
		Gateway:     gateway,
		Locker:      cache.NewLocker(redisClient),
	}, orderService.Options{
		CashChargeOnCheckout: orderCfg.CashChargeOnCheckout,
		PaymentTimeout:       orderCfg.PaymentTimeoutDuration(),
		CheckoutLockTTL:      orderCfg.CheckoutLockDuration(),
		AdminPhone:           orderCfg.AdminPhone,
		PublishEvents:        producer != nil,
	})

	inviteSvc := distribution.NewInviteService(userRepo, qrcode.NewGenerator(), cfg.Server.PublicURL)

	return &application{
		jwtManager:      jwtManager,
		redis:           redisClient,
		relay:           relay,
		orderService:    orderSvc,
		couponService:   couponSvc,
		walletService:   walletSvc,
		settingsService: settingsSvc,
		inviteService:   inviteSvc,
	}, nil
}

// buildDispatcher 注册通知通道；未配置的通道只写日志
func buildDispatcher(cfg *config.Config, producer *broker.Producer) (*notification.ChannelDispatcher, error) {
	d := notification.NewChannelDispatcher().Register(models.OutboxChannelLog, notification.LogNotifier{})

	switch cfg.SMS.Provider {
	case "aliyun":
		sender, err := sms.NewAliyunSender(&sms.AliyunConfig{
			AccessKeyID:     cfg.SMS.AccessKeyID,
			AccessKeySecret: cfg.SMS.AccessKeySecret,
			SignName:        cfg.SMS.SignName,
			Templates:       cfg.SMS.Templates,
		})
		if err != nil {
			return nil, err
		}
		// 阿里云单号码频控较严，限制整体发送速率
		d.Register(models.OutboxChannelSMS, notification.NewSMSNotifier(sender, 10))
	case "mock":
		d.Register(models.OutboxChannelSMS, notification.NewSMSNotifier(sms.NewMockSender(), 0))
	default:
		d.Register(models.OutboxChannelSMS, notification.LogNotifier{})
	}

	if producer != nil {
		d.Register(models.OutboxChannelEvent, notification.NewEventNotifier(producer))
	} else {
		d.Register(models.OutboxChannelEvent, notification.LogNotifier{})
	}
	return d, nil
}

func buildGateway(cfg *config.Config) (payment.Gateway, error) {
	switch cfg.Payment.Provider {
	case "http":
		if cfg.Payment.Endpoint == "" {
			return nil, fmt.Errorf("payment.endpoint is required for http provider")
		}
		return payment.NewHTTPGateway(cfg.Payment.Endpoint, cfg.Payment.APIKey), nil
	case "", "mock":
		logger.Warn("using mock payment gateway")
		return payment.NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Payment.Provider)
	}
}
