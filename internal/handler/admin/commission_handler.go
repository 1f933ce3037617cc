package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-backend/internal/common/handler"
	"github.com/dumeirei/storefront-backend/internal/common/response"
	"github.com/dumeirei/storefront-backend/internal/service/distribution"
)

// CommissionHandler 佣金配置
type CommissionHandler struct {
	settings *distribution.SettingsService
}

// NewCommissionHandler 创建处理器
func NewCommissionHandler(svc *distribution.SettingsService) *CommissionHandler {
	return &CommissionHandler{settings: svc}
}

// Get 当前生效配置
// @Summary 当前佣金配置
// @Tags 管理-佣金
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=distribution.Settings}
// @Router /api/v1/admin/commission/settings [get]
func (h *CommissionHandler) Get(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	settings, err := h.settings.Snapshot(c.Request.Context(), nil)
	handler.MustSucceed(c, err, settings)
}

// Update 更新配置
// @Summary 更新佣金配置
// @Description 层级 0~10，比例个数等于层级数；旧配置保留为历史
// @Tags 管理-佣金
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body distribution.UpdateSettingsRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.CommissionSetting}
// @Router /api/v1/admin/commission/settings [put]
func (h *CommissionHandler) Update(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	var req distribution.UpdateSettingsRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	setting, err := h.settings.Update(c.Request.Context(), adminID, &req)
	if handler.HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, "已更新", setting)
}

// History 变更历史
// @Summary 佣金配置历史
// @Tags 管理-佣金
// @Produce json
// @Security Bearer
// @Param limit query int false "条数" default(20)
// @Success 200 {object} response.Response{data=[]models.CommissionSetting}
// @Router /api/v1/admin/commission/settings/history [get]
func (h *CommissionHandler) History(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	list, err := h.settings.History(c.Request.Context(), limit)
	handler.MustSucceed(c, err, list)
}
