// Package order 下单编排：扣款、核销优惠券、落单、分佣、写入通知在同一事务内完成
package order

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/cache"
	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/metrics"
	"github.com/dumeirei/storefront-backend/internal/common/tracing"
	"github.com/dumeirei/storefront-backend/internal/common/utils"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
	"github.com/dumeirei/storefront-backend/internal/service/distribution"
	"github.com/dumeirei/storefront-backend/internal/service/marketing"
	"github.com/dumeirei/storefront-backend/internal/service/notification"
	"github.com/dumeirei/storefront-backend/pkg/payment"
	"github.com/dumeirei/storefront-backend/pkg/sms"
)

// Kicker 提交后唤醒通知投递
type Kicker interface {
	Kick()
}

// Options 下单配置
type Options struct {
	// CashChargeOnCheckout 现金支付在下单时同步扣款
	CashChargeOnCheckout bool
	PaymentTimeout       time.Duration
	CheckoutLockTTL      time.Duration
	AdminPhone           string
	// PublishEvents 是否写入订单事件（event 通道）
	PublishEvents bool
}

// Deps 订单服务依赖
type Deps struct {
	DB          *gorm.DB
	OrderRepo   *repository.OrderRepository
	ProductRepo *repository.ProductRepository
	UserRepo    *repository.UserRepository
	CouponRepo  *repository.CouponRepository
	Coupons     *marketing.CouponService
	Walker      *distribution.ReferralWalker
	Commission  *distribution.CommissionService
	Settings    *distribution.SettingsService
	Outbox      *notification.Outbox
	Relay       Kicker
	Gateway     payment.Gateway
	Locker      *cache.Locker
}

// OrderService 订单服务
type OrderService struct {
	db          *gorm.DB
	orderRepo   *repository.OrderRepository
	productRepo *repository.ProductRepository
	userRepo    *repository.UserRepository
	couponRepo  *repository.CouponRepository
	coupons     *marketing.CouponService
	walker      *distribution.ReferralWalker
	commission  *distribution.CommissionService
	settings    *distribution.SettingsService
	outbox      *notification.Outbox
	relay       Kicker
	gateway     payment.Gateway
	locker      *cache.Locker
	opts        Options
}

// NewOrderService 创建订单服务
func NewOrderService(d Deps, opts Options) *OrderService {
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = 15 * time.Second
	}
	if opts.CheckoutLockTTL <= 0 {
		opts.CheckoutLockTTL = 30 * time.Second
	}
	locker := d.Locker
	if locker == nil {
		locker = cache.NewLocker(nil)
	}
	return &OrderService{
		db:          d.DB,
		orderRepo:   d.OrderRepo,
		productRepo: d.ProductRepo,
		userRepo:    d.UserRepo,
		couponRepo:  d.CouponRepo,
		coupons:     d.Coupons,
		walker:      d.Walker,
		commission:  d.Commission,
		settings:    d.Settings,
		outbox:      d.Outbox,
		relay:       d.Relay,
		gateway:     d.Gateway,
		locker:      locker,
		opts:        opts,
	}
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	Items           []CartLine             `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   string                 `json:"payment_method" binding:"required,oneof=cash installments check"`
	CouponCode      string                 `json:"coupon_code"`
	ShippingAddress map[string]interface{} `json:"shipping_address" binding:"required"`
	PaymentDetails  map[string]interface{} `json:"payment_details"`
}

// CreateOrder 下单。先扣款再开事务；事务失败时退款补偿，优惠券和佣金随事务回滚。
// 返回的错误中只有校验类原因对用户可见，其余统一为“下单失败，请稍后重试”。
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req *CreateOrderRequest) (order *models.Order, err error) {
	ctx, span := tracing.Start(ctx, "order.create",
		tracing.WithUserID(userID),
		tracing.WithPaymentMethod(req.PaymentMethod),
	)
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = string(apperrors.KindOf(err))
		}
		metrics.GetMetrics().RecordOrder(req.PaymentMethod, result)
		if err != nil {
			logger.Warn("create order failed",
				logger.UserID(userID),
				logger.String("payment_method", req.PaymentMethod),
				logger.Latency(time.Since(start)),
				logger.Err(err),
			)
		}
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	lock, err := s.acquireCheckoutLock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			logger.Warn("release checkout lock failed", logger.UserID(userID), logger.Err(rerr))
		}
	}()

	order, err = s.createOrder(ctx, userID, req)
	if err != nil {
		return nil, publicError(err)
	}

	if s.relay != nil {
		s.relay.Kick()
	}
	logger.Info("order created",
		logger.UserID(userID),
		logger.OrderNo(order.OrderNo),
		logger.Amount("total_amount", order.TotalAmount),
		logger.Latency(time.Since(start)),
	)
	return order, nil
}

func validateRequest(req *CreateOrderRequest) error {
	if !IsPaymentMethod(req.PaymentMethod) {
		return apperrors.ErrInvalidPaymentMethod
	}
	if len(req.Items) == 0 {
		return apperrors.ErrCartEmpty
	}
	if len(req.ShippingAddress) == 0 {
		return apperrors.ErrShippingAddress
	}
	return nil
}

func (s *OrderService) acquireCheckoutLock(ctx context.Context, userID int64) (*cache.Lock, error) {
	key := cache.BuildKey(cache.KeyPrefixCheckoutLock, strconv.FormatInt(userID, 10))
	lock, err := s.locker.Acquire(ctx, key, s.opts.CheckoutLockTTL)
	switch {
	case errors.Is(err, cache.ErrLockHeld):
		metrics.GetMetrics().RecordCheckoutLock("held")
		return nil, apperrors.ErrCheckoutInProgress
	case err != nil:
		// Redis 不可用时放行，重复提交仍受数据库约束
		metrics.GetMetrics().RecordCheckoutLock("error")
		logger.Warn("checkout lock unavailable", logger.UserID(userID), logger.Err(err))
		return nil, nil
	}
	metrics.GetMetrics().RecordCheckoutLock("acquired")
	return lock, nil
}

func (s *OrderService) createOrder(ctx context.Context, userID int64, req *CreateOrderRequest) (*models.Order, error) {
	items, subtotal, err := s.priceCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	// 只读预校验，决定扣款金额；真正的核销在事务内加锁完成
	var coupon *models.Coupon
	discount := decimal.Zero
	code := repository.NormalizeCode(req.CouponCode)
	if code != "" {
		res, err := s.coupons.Validate(ctx, code, subtotal)
		if err != nil {
			return nil, err
		}
		if !res.Valid {
			return nil, marketing.ErrorForReason(res.Reason)
		}
		coupon = res.Coupon
		discount = res.DiscountAmount
	}
	total := utils.ClampNonNegative(subtotal.Sub(discount))

	order := &models.Order{
		OrderNo:         utils.GenerateOrderNo("SO"),
		UserID:          userID,
		Subtotal:        subtotal,
		DiscountAmount:  discount,
		TotalAmount:     total,
		PaymentMethod:   req.PaymentMethod,
		PaymentDetails:  models.JSON(req.PaymentDetails),
		ShippingAddress: models.JSON(req.ShippingAddress),
		Items:           items,
	}
	if coupon != nil {
		order.AppliedCouponCode = &coupon.Code
	}

	chargeKey := uuid.NewString()
	charge, err := s.charge(ctx, order, chargeKey)
	if err != nil {
		return nil, err
	}
	if charge != nil {
		order.PaymentTxID = &charge.TransactionID
	}
	// 全额抵扣的现金订单无需扣款，视同已支付
	paid := charge != nil || (req.PaymentMethod == models.PaymentMethodCash && s.opts.CashChargeOnCheckout && !total.IsPositive())
	order.Status = initialStatus(req.PaymentMethod, paid)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.persist(ctx, tx, order, coupon)
	})
	if err != nil {
		if charge != nil {
			s.compensate(ctx, order, charge.TransactionID, chargeKey, err)
		}
		return nil, err
	}
	return order, nil
}

// charge 现金支付同步扣款，超时按失败处理。非现金或金额为零时不扣款。
// 超时或传输错误时扣款结果未知，按幂等键撤销
func (s *OrderService) charge(ctx context.Context, order *models.Order, key string) (*payment.ChargeResult, error) {
	if order.PaymentMethod != models.PaymentMethodCash || !s.opts.CashChargeOnCheckout || !order.TotalAmount.IsPositive() {
		return nil, nil
	}

	ctx, span := tracing.Start(ctx, "order.payment.charge", tracing.WithOrderNo(order.OrderNo))
	defer span.End()

	payCtx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
	defer cancel()

	res, err := s.gateway.Charge(payCtx, &payment.ChargeRequest{
		IdempotencyKey: key,
		Amount:         order.TotalAmount,
		Method:         order.PaymentMethod,
		Reference:      order.OrderNo,
		Details:        order.PaymentDetails,
	})
	if err != nil {
		appErr := apperrors.ErrPaymentFailed.WithError(err)
		if errors.Is(payCtx.Err(), context.DeadlineExceeded) {
			metrics.GetMetrics().RecordPayment("charge", "timeout")
			appErr = apperrors.ErrPaymentTimeout.WithError(err)
		} else {
			metrics.GetMetrics().RecordPayment("charge", "error")
		}
		s.compensate(ctx, order, "", key, appErr)
		return nil, appErr
	}
	if !res.Succeeded() {
		metrics.GetMetrics().RecordPayment("charge", "declined")
		return nil, apperrors.ErrPaymentFailed.WithReason(res.Status)
	}
	metrics.GetMetrics().RecordPayment("charge", "success")
	return res, nil
}

// persist 事务内：核销优惠券、写订单、分佣、写通知
func (s *OrderService) persist(ctx context.Context, tx *gorm.DB, order *models.Order, coupon *models.Coupon) error {
	buyer, err := s.userRepo.GetByID(ctx, tx, order.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.ErrDatabaseError.WithError(err)
	}

	var redemption *marketing.Redemption
	if coupon != nil {
		redemption, err = s.coupons.RedeemTx(ctx, tx, coupon.ID, order.Subtotal)
		if err != nil {
			return err
		}
		// 扣款金额已按预校验的优惠计算，锁内结果必须一致
		if !redemption.DiscountAmount.Equal(order.DiscountAmount) {
			return apperrors.ErrCouponInvalidValue.WithReason("discount changed during checkout")
		}
	}

	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}

	if redemption != nil {
		if err := s.couponRepo.CreateRedemption(ctx, tx, &models.CouponRedemption{
			CouponID:       redemption.Coupon.ID,
			UserID:         order.UserID,
			OrderID:        order.ID,
			DiscountAmount: redemption.DiscountAmount,
		}); err != nil {
			return apperrors.ErrDatabaseError.WithError(err)
		}
	}

	settings, err := s.settings.Snapshot(ctx, tx)
	if err != nil {
		return err
	}
	chain, err := s.walker.ResolveChain(ctx, tx, order.UserID, settings.NumberOfLevels)
	if err != nil {
		return err
	}
	credits, err := s.commission.Distribute(ctx, tx, order, chain, settings.Percentages)
	if err != nil {
		return err
	}
	tracing.AddEvent(ctx, "commission.distributed", attribute.Int("commission.credits", len(credits)))

	return s.outbox.Enqueue(ctx, tx, s.createdMessages(order, buyer)...)
}

func (s *OrderService) createdMessages(order *models.Order, buyer *models.User) []*notification.Message {
	data := map[string]interface{}{
		"order_no":     order.OrderNo,
		"total_amount": order.TotalAmount.String(),
		"status":       order.Status,
	}
	var msgs []*notification.Message
	if buyer.Phone != nil && *buyer.Phone != "" {
		msgs = append(msgs, &notification.Message{
			EventType: models.OutboxEventOrderCreated,
			Channel:   models.OutboxChannelSMS,
			Recipient: *buyer.Phone,
			Template:  sms.TemplateOrderCreated,
			Data:      data,
		})
	}
	if s.opts.AdminPhone != "" {
		msgs = append(msgs, &notification.Message{
			EventType: models.OutboxEventOrderCreated,
			Channel:   models.OutboxChannelSMS,
			Recipient: s.opts.AdminPhone,
			Template:  sms.TemplateNewOrderAlert,
			Data:      data,
		})
	}
	if s.opts.PublishEvents {
		msgs = append(msgs, &notification.Message{
			EventType: models.OutboxEventOrderCreated,
			Channel:   models.OutboxChannelEvent,
			Recipient: order.OrderNo,
			Template:  models.OutboxEventOrderCreated,
			Data: map[string]interface{}{
				"order_no":        order.OrderNo,
				"user_id":         order.UserID,
				"subtotal":        order.Subtotal.String(),
				"discount_amount": order.DiscountAmount.String(),
				"total_amount":    order.TotalAmount.String(),
				"payment_method":  order.PaymentMethod,
				"status":          order.Status,
			},
		})
	}
	return msgs
}

// compensate 退还已扣款项；transactionID 为空时按扣款幂等键撤销结果未知的扣款。
// 退款失败只记录并提醒管理员人工处理
func (s *OrderService) compensate(ctx context.Context, order *models.Order, transactionID, chargeKey string, cause error) {
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PaymentTimeout)
	defer cancel()

	reason, ref := "order persistence failed", transactionID
	if transactionID == "" {
		reason, ref = "charge outcome unknown", chargeKey
	}
	_, err := s.gateway.Refund(refundCtx, &payment.RefundRequest{
		IdempotencyKey:       "refund-" + ref,
		TransactionID:        transactionID,
		ChargeIdempotencyKey: chargeKey,
		Amount:               order.TotalAmount,
		Reason:               reason,
	})
	if err == nil {
		metrics.GetMetrics().RecordPayment("refund", "success")
		logger.Warn("charge refunded after order failure",
			logger.OrderNo(order.OrderNo),
			logger.String("transaction_id", transactionID),
			logger.String("charge_key", chargeKey),
			logger.Err(cause),
		)
		return
	}

	metrics.GetMetrics().RecordPayment("refund", "error")
	logger.Error("refund after order failure failed, manual action required",
		logger.OrderNo(order.OrderNo),
		logger.UserID(order.UserID),
		logger.String("transaction_id", transactionID),
		logger.String("charge_key", chargeKey),
		logger.Amount("amount", order.TotalAmount),
		logger.Err(err),
	)

	if s.opts.AdminPhone == "" {
		return
	}
	alert := &notification.Message{
		EventType: models.OutboxEventRefundFailed,
		Channel:   models.OutboxChannelSMS,
		Recipient: s.opts.AdminPhone,
		Template:  sms.TemplateRefundFailedAlert,
		Data: map[string]interface{}{
			"order_no":       order.OrderNo,
			"transaction_id": transactionID,
			"charge_key":     chargeKey,
			"amount":         order.TotalAmount.String(),
		},
	}
	if err := s.outbox.Enqueue(refundCtx, nil, alert); err != nil {
		logger.Error("enqueue refund alert failed", logger.OrderNo(order.OrderNo), logger.Err(err))
		return
	}
	if s.relay != nil {
		s.relay.Kick()
	}
}

// publicError 下单失败时只暴露用户可处理的原因
func publicError(err error) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindCapacityExceeded, apperrors.KindConflict, apperrors.KindNotFound:
		return err
	}
	return apperrors.ErrOrderFailed.WithError(err)
}

// UpdateOrderStatus 管理员单步变更订单状态并通知用户
func (s *OrderService) UpdateOrderStatus(ctx context.Context, adminID, orderID int64, status string) (*models.Order, error) {
	status = strings.TrimSpace(status)
	if !IsValidStatus(status) {
		return nil, apperrors.ErrInvalidParams.WithMessage("无效的订单状态")
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrOrderNotFound
			}
			return apperrors.ErrDatabaseError.WithError(err)
		}

		from := order.Status
		if !CanTransition(from, status) {
			return apperrors.ErrOrderStatusError.WithMessage("订单状态不允许从 " + from + " 变更为 " + status)
		}
		ok, err := s.orderRepo.UpdateStatus(ctx, tx, orderID, from, status)
		if err != nil {
			return apperrors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return apperrors.ErrOrderStatusError
		}
		order.Status = status

		buyer, err := s.userRepo.GetByID(ctx, tx, order.UserID)
		if err != nil {
			return apperrors.ErrDatabaseError.WithError(err)
		}
		return s.outbox.Enqueue(ctx, tx, s.statusMessages(order, buyer, from)...)
	})
	if err != nil {
		return nil, err
	}

	if s.relay != nil {
		s.relay.Kick()
	}
	logger.Info("order status changed",
		logger.AdminID(adminID),
		logger.OrderNo(order.OrderNo),
		logger.String("status", status),
	)
	return order, nil
}

func (s *OrderService) statusMessages(order *models.Order, buyer *models.User, from string) []*notification.Message {
	var msgs []*notification.Message
	if buyer.Phone != nil && *buyer.Phone != "" {
		msgs = append(msgs, &notification.Message{
			EventType: models.OutboxEventOrderStatusChanged,
			Channel:   models.OutboxChannelSMS,
			Recipient: *buyer.Phone,
			Template:  sms.TemplateOrderStatusChanged,
			Data:      map[string]interface{}{"order_no": order.OrderNo, "status": order.Status},
		})
	}
	if s.opts.PublishEvents {
		msgs = append(msgs, &notification.Message{
			EventType: models.OutboxEventOrderStatusChanged,
			Channel:   models.OutboxChannelEvent,
			Recipient: order.OrderNo,
			Template:  models.OutboxEventOrderStatusChanged,
			Data: map[string]interface{}{
				"order_no": order.OrderNo,
				"from":     from,
				"to":       order.Status,
			},
		})
	}
	return msgs
}

// GetOrder 获取订单详情，userID 为 0 表示管理端查看
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if userID != 0 && order.UserID != userID {
		return nil, apperrors.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 用户订单列表
func (s *OrderService) ListOrders(ctx context.Context, userID int64, page utils.Pagination) ([]*models.Order, int64, error) {
	page.Normalize()
	list, total, err := s.orderRepo.ListByUser(ctx, userID, page.GetOffset(), page.PageSize)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// ListAllOrders 管理端订单列表
func (s *OrderService) ListAllOrders(ctx context.Context, status string, page utils.Pagination) ([]*models.Order, int64, error) {
	if status != "" && !IsValidStatus(status) {
		return nil, 0, apperrors.ErrInvalidParams.WithMessage("无效的订单状态")
	}
	page.Normalize()
	list, total, err := s.orderRepo.List(ctx, status, page.GetOffset(), page.PageSize)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}
