package marketing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/metrics"
	"github.com/dumeirei/storefront-backend/internal/common/utils"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
)

// CouponService 优惠券服务（校验只读，核销加行锁）
type CouponService struct {
	db         *gorm.DB
	couponRepo *repository.CouponRepository
	scale      int32
	now        func() time.Time
	metrics    *metrics.Metrics
}

// NewCouponService 创建优惠券服务，scale 为金额保留小数位
func NewCouponService(db *gorm.DB, couponRepo *repository.CouponRepository, scale int32) *CouponService {
	return &CouponService{
		db:         db,
		couponRepo: couponRepo,
		scale:      scale,
		now:        time.Now,
		metrics:    metrics.GetMetrics(),
	}
}

// SetClock 替换时钟（测试用）
func (s *CouponService) SetClock(now func() time.Time) {
	s.now = now
}

// ValidationResult 优惠券校验结果
type ValidationResult struct {
	Valid          bool            `json:"valid"`
	Coupon         *models.Coupon  `json:"coupon,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Reason         string          `json:"reason,omitempty"`
	Message        string          `json:"message,omitempty"`
}

// Redemption 核销结果
type Redemption struct {
	Coupon         *models.Coupon
	DiscountAmount decimal.Decimal
}

// Validate 校验优惠券并计算预估优惠，不修改任何状态
func (s *CouponService) Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*ValidationResult, error) {
	if repository.NormalizeCode(code) == "" || cartTotal.IsNegative() {
		return nil, apperrors.ErrInvalidParams
	}

	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid(ReasonNotFound), nil
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	if reason := s.check(coupon, cartTotal); reason != "" {
		res := invalid(reason)
		res.Coupon = coupon
		return res, nil
	}

	return &ValidationResult{
		Valid:          true,
		Coupon:         coupon,
		DiscountAmount: ComputeDiscount(coupon, cartTotal, s.scale),
	}, nil
}

// RedeemTx 在调用方事务内核销：锁定优惠券行，锁内重新校验，使用次数加一
func (s *CouponService) RedeemTx(ctx context.Context, tx *gorm.DB, couponID int64, cartTotal decimal.Decimal) (*Redemption, error) {
	coupon, err := s.couponRepo.GetForUpdate(ctx, tx, couponID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorForReason(ReasonNotFound)
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	if reason := s.check(coupon, cartTotal); reason != "" {
		s.metrics.RecordCouponRedemption(reason)
		return nil, ErrorForReason(reason)
	}

	ok, err := s.couponRepo.IncrementUsage(ctx, tx, coupon.ID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if !ok {
		s.metrics.RecordCouponRedemption(ReasonCapacityExhausted)
		return nil, ErrorForReason(ReasonCapacityExhausted)
	}
	coupon.UsageCount++

	s.metrics.RecordCouponRedemption("success")
	logger.Debug("coupon redeemed", logger.CouponCode(coupon.Code), logger.Int("usage_count", coupon.UsageCount))

	return &Redemption{
		Coupon:         coupon,
		DiscountAmount: ComputeDiscount(coupon, cartTotal, s.scale),
	}, nil
}

// Redeem 以独立事务核销一次
func (s *CouponService) Redeem(ctx context.Context, couponID int64, cartTotal decimal.Decimal) (*Redemption, error) {
	var result *Redemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.RedeemTx(ctx, tx, couponID, cartTotal)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// check 返回不可用原因，可用时返回空串
func (s *CouponService) check(c *models.Coupon, cartTotal decimal.Decimal) string {
	switch {
	case !c.IsActive:
		return ReasonInactive
	case !s.now().Before(c.ExpiryDate):
		return ReasonExpired
	case !c.HasCapacity():
		return ReasonCapacityExhausted
	case c.MinOrderValue != nil && cartTotal.LessThan(*c.MinOrderValue):
		return ReasonBelowMinimum
	}
	return ""
}

// ComputeDiscount 计算优惠金额：百分比按比例取整，固定金额不超过订单金额
func ComputeDiscount(c *models.Coupon, cartTotal decimal.Decimal, scale int32) decimal.Decimal {
	if !cartTotal.IsPositive() || !c.DiscountValue.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case models.CouponTypePercentage:
		discount = utils.PercentOf(cartTotal, c.DiscountValue, scale)
	case models.CouponTypeFixed:
		discount = decimal.Min(c.DiscountValue, cartTotal)
	default:
		return decimal.Zero
	}

	if discount.GreaterThan(cartTotal) {
		discount = cartTotal
	}
	return utils.ClampNonNegative(discount)
}

func invalid(reason string) *ValidationResult {
	return &ValidationResult{
		Valid:          false,
		DiscountAmount: decimal.Zero,
		Reason:         reason,
		Message:        ErrorForReason(reason).Message,
	}
}

// CreateCouponRequest 创建优惠券请求
type CreateCouponRequest struct {
	Code          string           `json:"code" binding:"required,max=50"`
	DiscountType  string           `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	ExpiryDate    time.Time        `json:"expiry_date" binding:"required"`
	UsageLimit    *int             `json:"usage_limit"`
	MinOrderValue *decimal.Decimal `json:"min_order_value"`
	IsActive      *bool            `json:"is_active"`
}

// CreateCoupon 创建优惠券（管理端）
func (s *CouponService) CreateCoupon(ctx context.Context, req *CreateCouponRequest) (*models.Coupon, error) {
	if repository.NormalizeCode(req.Code) == "" {
		return nil, apperrors.ErrInvalidParams.WithMessage("优惠券码不能为空")
	}
	if !req.DiscountValue.IsPositive() {
		return nil, apperrors.ErrCouponInvalidValue
	}
	if req.DiscountType == models.CouponTypePercentage && req.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return nil, apperrors.ErrCouponInvalidValue.WithMessage("百分比优惠不能超过100")
	}
	if req.DiscountType != models.CouponTypePercentage && req.DiscountType != models.CouponTypeFixed {
		return nil, apperrors.ErrInvalidParams.WithMessage("不支持的优惠类型")
	}
	if req.UsageLimit != nil && *req.UsageLimit < 0 {
		return nil, apperrors.ErrInvalidParams.WithMessage("使用次数上限不能为负数")
	}
	if req.MinOrderValue != nil && req.MinOrderValue.IsNegative() {
		return nil, apperrors.ErrInvalidParams.WithMessage("最低消费金额不能为负数")
	}

	exists, err := s.couponRepo.ExistsByCode(ctx, req.Code)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, apperrors.ErrCouponCodeExists
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	coupon := &models.Coupon{
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		ExpiryDate:    req.ExpiryDate,
		UsageLimit:    req.UsageLimit,
		MinOrderValue: req.MinOrderValue,
		IsActive:      active,
	}
	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	logger.Info("coupon created", logger.CouponCode(coupon.Code))
	return coupon, nil
}
