// Package admin 管理端 HTTP Handler
package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-backend/internal/common/handler"
	"github.com/dumeirei/storefront-backend/internal/common/response"
	orderService "github.com/dumeirei/storefront-backend/internal/service/order"
)

// OrderHandler 管理端订单处理器
type OrderHandler struct {
	orderService *orderService.OrderService
}

// NewOrderHandler 创建管理端订单处理器
func NewOrderHandler(svc *orderService.OrderService) *OrderHandler {
	return &OrderHandler{orderService: svc}
}

// List 订单列表
// @Summary 订单列表
// @Tags 管理-订单
// @Produce json
// @Security Bearer
// @Param status query string false "订单状态"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	p := handler.BindPagination(c)
	list, total, err := h.orderService.ListAllOrders(c.Request.Context(), c.Query("status"), p)
	handler.MustSucceedPage(c, err, list, total, p)
}

// OrderDetail 订单详情及可流转状态
type OrderDetail struct {
	Order        interface{} `json:"order"`
	NextStatuses []string    `json:"next_statuses"`
}

// Get 订单详情
// @Summary 订单详情
// @Tags 管理-订单
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=OrderDetail}
// @Router /api/v1/admin/orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	_, orderID, ok := requireAdminAndID(c, "订单")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), 0, orderID)
	if handler.HandleError(c, err) {
		return
	}
	response.Success(c, OrderDetail{Order: order, NextStatuses: orderService.NextStatuses(order.Status)})
}

// UpdateStatusRequest 状态变更请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus 变更订单状态
// @Summary 变更订单状态
// @Description 只允许单步流转，变更后通知用户
// @Tags 管理-订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Param request body UpdateStatusRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /api/v1/admin/orders/{id}/status [put]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	adminID, orderID, ok := requireAdminAndID(c, "订单")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), adminID, orderID, req.Status)
	handler.MustSucceed(c, err, order)
}

func requireAdminAndID(c *gin.Context, resource string) (int64, int64, bool) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return 0, 0, false
	}
	id, ok := handler.ParseID(c, resource)
	if !ok {
		return 0, 0, false
	}
	return adminID, id, true
}
