// Package order 订单相关 HTTP Handler
package order

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-backend/internal/common/handler"
	"github.com/dumeirei/storefront-backend/internal/common/response"
	orderService "github.com/dumeirei/storefront-backend/internal/service/order"
)

// Handler 订单处理器
type Handler struct {
	orderService *orderService.OrderService
}

// NewHandler 创建订单处理器
func NewHandler(svc *orderService.OrderService) *Handler {
	return &Handler{orderService: svc}
}

// CreateOrder 下单
// @Summary 下单
// @Description 现金支付先扣款再落单；优惠券被抢光时返回 reason=capacity exhausted，可去掉优惠券重试
// @Tags 订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body orderService.CreateOrderRequest true "下单参数"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /api/v1/orders [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req orderService.CreateOrderRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), userID, &req)
	if handler.HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, "下单成功", order)
}

// ListOrders 我的订单
// @Summary 我的订单列表
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	p := handler.BindPagination(c)
	list, total, err := h.orderService.ListOrders(c.Request.Context(), userID, p)
	handler.MustSucceedPage(c, err, list, total, p)
}

// GetOrder 订单详情
// @Summary 订单详情
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /api/v1/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	orderID, ok := handler.ParseID(c, "订单")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), userID, orderID)
	handler.MustSucceed(c, err, order)
}
