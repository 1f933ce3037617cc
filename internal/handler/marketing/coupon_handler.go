// Package marketing 优惠券 HTTP Handler
package marketing

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dumeirei/storefront-backend/internal/common/handler"
	"github.com/dumeirei/storefront-backend/internal/common/response"
	marketingService "github.com/dumeirei/storefront-backend/internal/service/marketing"
)

// CouponHandler 优惠券处理器
type CouponHandler struct {
	couponService *marketingService.CouponService
}

// NewCouponHandler 创建优惠券处理器
func NewCouponHandler(svc *marketingService.CouponService) *CouponHandler {
	return &CouponHandler{couponService: svc}
}

// ValidateRequest 优惠券校验请求
type ValidateRequest struct {
	Code      string          `json:"code" binding:"required"`
	CartTotal decimal.Decimal `json:"cart_total"`
}

// Validate 校验优惠券
// @Summary 校验优惠券并预估优惠
// @Description 只读校验，不占用次数。不可用时 valid=false 并给出 reason
// @Tags 营销-优惠券
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body ValidateRequest true "请求参数"
// @Success 200 {object} response.Response{data=marketing.ValidationResult}
// @Router /api/v1/coupons/validate [post]
func (h *CouponHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	res, err := h.couponService.Validate(c.Request.Context(), req.Code, req.CartTotal)
	handler.MustSucceed(c, err, res)
}

// Create 创建优惠券（管理端）
// @Summary 创建优惠券
// @Tags 管理-优惠券
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body marketingService.CreateCouponRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Coupon}
// @Router /api/v1/admin/coupons [post]
func (h *CouponHandler) Create(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	var req marketingService.CreateCouponRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	coupon, err := h.couponService.CreateCoupon(c.Request.Context(), &req)
	if handler.HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, "创建成功", coupon)
}
