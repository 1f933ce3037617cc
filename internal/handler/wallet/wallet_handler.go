// Package wallet 钱包 HTTP Handler
package wallet

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-backend/internal/common/handler"
	"github.com/dumeirei/storefront-backend/internal/common/response"
	walletService "github.com/dumeirei/storefront-backend/internal/service/wallet"
)

// Handler 钱包处理器
type Handler struct {
	walletService *walletService.WalletService
}

// NewHandler 创建钱包处理器
func NewHandler(svc *walletService.WalletService) *Handler {
	return &Handler{walletService: svc}
}

// GetSummary 钱包概览
// @Summary 钱包概览
// @Tags 钱包
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=wallet.Summary}
// @Router /api/v1/wallet [get]
func (h *Handler) GetSummary(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	summary, err := h.walletService.GetWalletSummary(c.Request.Context(), userID)
	handler.MustSucceed(c, err, summary)
}

// ListTransactions 钱包流水
// @Summary 钱包流水
// @Tags 钱包
// @Produce json
// @Security Bearer
// @Param type query string false "流水类型"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	p := handler.BindPagination(c)
	list, total, err := h.walletService.ListTransactions(c.Request.Context(), userID, c.Query("type"), p)
	handler.MustSucceedPage(c, err, list, total, p)
}

// RequestWithdrawal 申请提现
// @Summary 申请提现
// @Description 记录待审核申请，审核通过后才扣减余额
// @Tags 钱包
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body walletService.WithdrawRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Transaction}
// @Router /api/v1/wallet/withdrawals [post]
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}
	var req walletService.WithdrawRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	txn, err := h.walletService.RequestWithdrawal(c.Request.Context(), userID, &req)
	if handler.HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, "提现申请已提交", txn)
}
