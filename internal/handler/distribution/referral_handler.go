// Package distribution 推荐码 HTTP Handler
package distribution

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-backend/internal/common/handler"
	"github.com/dumeirei/storefront-backend/internal/service/distribution"
)

// Handler 推荐处理器
type Handler struct {
	inviteService *distribution.InviteService
}

// NewHandler 创建推荐处理器
func NewHandler(svc *distribution.InviteService) *Handler {
	return &Handler{inviteService: svc}
}

// GetInviteInfo 我的推荐信息
// @Summary 推荐码、注册链接和二维码
// @Tags 推荐
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=distribution.InviteInfo}
// @Router /api/v1/referral [get]
func (h *Handler) GetInviteInfo(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	info, err := h.inviteService.GetInviteInfo(c.Request.Context(), userID)
	handler.MustSucceed(c, err, info)
}

// GetQRCode 推荐二维码图片
// @Summary 推荐二维码 PNG
// @Tags 推荐
// @Produce png
// @Security Bearer
// @Success 200 {file} binary
// @Router /api/v1/referral/qrcode [get]
func (h *Handler) GetQRCode(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	data, err := h.inviteService.QRCodePNG(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", data)
}
