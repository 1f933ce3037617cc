package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-backend/internal/common/handler"
	"github.com/dumeirei/storefront-backend/internal/common/response"
	"github.com/dumeirei/storefront-backend/internal/models"
	walletService "github.com/dumeirei/storefront-backend/internal/service/wallet"
)

// FinanceHandler 提现审核与对账
type FinanceHandler struct {
	walletService *walletService.WalletService
}

// NewFinanceHandler 创建处理器
func NewFinanceHandler(svc *walletService.WalletService) *FinanceHandler {
	return &FinanceHandler{walletService: svc}
}

// ListWithdrawals 提现申请列表
// @Summary 提现申请列表
// @Tags 管理-财务
// @Produce json
// @Security Bearer
// @Param status query string false "pending/approved/rejected"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/admin/withdrawals [get]
func (h *FinanceHandler) ListWithdrawals(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	p := handler.BindPagination(c)
	status := c.DefaultQuery("status", models.TransactionStatusPending)
	list, total, err := h.walletService.ListWithdrawals(c.Request.Context(), status, p)
	handler.MustSucceedPage(c, err, list, total, p)
}

// Approve 审核通过
// @Summary 审核通过提现申请
// @Tags 管理-财务
// @Produce json
// @Security Bearer
// @Param id path int true "申请ID"
// @Success 200 {object} response.Response{data=models.Transaction}
// @Router /api/v1/admin/withdrawals/{id}/approve [post]
func (h *FinanceHandler) Approve(c *gin.Context) {
	adminID, id, ok := requireAdminAndID(c, "提现申请")
	if !ok {
		return
	}
	txn, err := h.walletService.ApproveWithdrawal(c.Request.Context(), adminID, id)
	handler.MustSucceed(c, err, txn)
}

// RejectRequest 驳回请求
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=200"`
}

// Reject 驳回
// @Summary 驳回提现申请
// @Tags 管理-财务
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "申请ID"
// @Param request body RejectRequest true "驳回原因"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/withdrawals/{id}/reject [post]
func (h *FinanceHandler) Reject(c *gin.Context) {
	adminID, id, ok := requireAdminAndID(c, "提现申请")
	if !ok {
		return
	}
	var req RejectRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	err := h.walletService.RejectWithdrawal(c.Request.Context(), adminID, id, req.Reason)
	handler.MustSucceed(c, err, nil)
}

// RevealAccount 查看提现账户
// @Summary 查看提现账户明文
// @Tags 管理-财务
// @Produce json
// @Security Bearer
// @Param id path int true "申请ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/withdrawals/{id}/account [get]
func (h *FinanceHandler) RevealAccount(c *gin.Context) {
	_, id, ok := requireAdminAndID(c, "提现申请")
	if !ok {
		return
	}
	account, err := h.walletService.RevealAccount(c.Request.Context(), id)
	handler.MustSucceed(c, err, gin.H{"account": account})
}

// Reconcile 立即对账
// @Summary 余额与流水对账
// @Tags 管理-财务
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=wallet.ReconcileReport}
// @Router /api/v1/admin/wallet/reconcile [post]
func (h *FinanceHandler) Reconcile(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}
	report, err := h.walletService.Reconcile(c.Request.Context(), 500)
	if handler.HandleError(c, err) {
		return
	}
	response.Success(c, report)
}
