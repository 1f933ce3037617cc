// Package wallet 钱包账本：流水只追加，余额与流水在同一事务内同步变更
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/crypto"
	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/utils"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
	"github.com/dumeirei/storefront-backend/internal/service/notification"
	"github.com/dumeirei/storefront-backend/pkg/sms"
)

// Options 钱包配置
type Options struct {
	MinWithdrawAmount decimal.Decimal
	// ReserveOnRequest 为 true 时，待审核的提现申请占用可用余额
	ReserveOnRequest bool
}

// WalletService 钱包服务
type WalletService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	txnRepo  *repository.TransactionRepository
	outbox   *notification.Outbox
	cipher   *crypto.Cipher
	opts     Options
}

// NewWalletService 创建钱包服务
func NewWalletService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	txnRepo *repository.TransactionRepository,
	outbox *notification.Outbox,
	cipher *crypto.Cipher,
	opts Options,
) *WalletService {
	return &WalletService{
		db:       db,
		userRepo: userRepo,
		txnRepo:  txnRepo,
		outbox:   outbox,
		cipher:   cipher,
		opts:     opts,
	}
}

// CreditInput 入账参数，Amount 为带符号金额（正数入账，负数扣减）
type CreditInput struct {
	UserID      int64
	Amount      decimal.Decimal
	Type        string
	OrderID     *int64
	Level       *int
	Description string
}

// CreditTx 在调用方事务内入账，返回入账后余额。
// 先锁用户行，保证并发入账与提现审核串行化。
func (s *WalletService) CreditTx(ctx context.Context, tx *gorm.DB, in *CreditInput) (decimal.Decimal, error) {
	txn, err := s.post(ctx, tx, in)
	if err != nil {
		return decimal.Zero, err
	}
	return txn.BalanceAfter, nil
}

func (s *WalletService) post(ctx context.Context, tx *gorm.DB, in *CreditInput) (*models.Transaction, error) {
	if in.Amount.IsZero() || !models.IsTransactionType(in.Type) || !models.AffectsBalance(in.Type) {
		return nil, apperrors.ErrInvalidParams
	}

	user, err := s.userRepo.GetForUpdate(ctx, tx, in.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	balance := user.WalletBalance.Add(in.Amount)
	if balance.IsNegative() {
		return nil, apperrors.ErrBalanceInsufficient
	}

	if err := s.userRepo.AdjustBalance(ctx, tx, in.UserID, in.Amount); err != nil {
		return nil, apperrors.ErrLedgerWriteFailed.WithError(err)
	}

	txn := &models.Transaction{
		UserID:       in.UserID,
		OrderID:      in.OrderID,
		Type:         in.Type,
		Amount:       in.Amount,
		BalanceAfter: balance,
		Description:  in.Description,
		Level:        in.Level,
	}
	if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
		return nil, apperrors.ErrLedgerWriteFailed.WithError(err)
	}
	return txn, nil
}

// Credit 独立事务入账
func (s *WalletService) Credit(ctx context.Context, in *CreditInput) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = s.CreditTx(ctx, tx, in)
		return err
	})
	return balance, err
}

// WithdrawRequest 提现申请
type WithdrawRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Account string          `json:"account" binding:"required"`
}

// RequestWithdrawal 提交提现申请，写入一条待审核的负数流水。
// 余额在审核通过时才扣减；未开启 ReserveOnRequest 时同一笔余额可被重复申请。
func (s *WalletService) RequestWithdrawal(ctx context.Context, userID int64, req *WithdrawRequest) (*models.Transaction, error) {
	account := strings.TrimSpace(req.Account)
	if account == "" {
		return nil, apperrors.ErrAccountRequired
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.ErrInvalidParams.WithMessage("提现金额必须大于0")
	}
	if req.Amount.LessThan(s.opts.MinWithdrawAmount) {
		return nil, apperrors.ErrWithdrawBelowMinimum.WithMessage(
			fmt.Sprintf("最低提现金额为 %s", s.opts.MinWithdrawAmount.String()))
	}

	if s.cipher == nil {
		return nil, apperrors.ErrInternalError.WithMessage("未配置账户加密密钥")
	}
	encrypted, err := s.cipher.Encrypt(account)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}

	var txn *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrUserNotFound
			}
			return apperrors.ErrDatabaseError.WithError(err)
		}

		available := user.WalletBalance
		if s.opts.ReserveOnRequest {
			pending, err := s.txnRepo.SumPendingWithdrawals(ctx, tx, userID)
			if err != nil {
				return apperrors.ErrDatabaseError.WithError(err)
			}
			available = available.Sub(pending)
		}
		if req.Amount.GreaterThan(available) {
			return apperrors.ErrBalanceInsufficient
		}

		status := models.TransactionStatusPending
		txn = &models.Transaction{
			UserID:           userID,
			Type:             models.TransactionTypeWithdrawalRequest,
			Amount:           req.Amount.Neg(),
			BalanceAfter:     user.WalletBalance,
			Description:      "提现至 " + utils.MaskAccount(account),
			Status:           &status,
			AccountEncrypted: &encrypted,
		}
		if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
			return apperrors.ErrLedgerWriteFailed.WithError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("withdrawal requested", logger.UserID(userID), logger.Amount("amount", req.Amount))
	return txn, nil
}

// ApproveWithdrawal 审核通过：复核余额，写入提现扣款流水并扣减余额
func (s *WalletService) ApproveWithdrawal(ctx context.Context, adminID, requestID int64) (*models.Transaction, error) {
	var debit *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, user, err := s.lockPendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}

		amount := req.Amount.Abs()
		if user.WalletBalance.LessThan(amount) {
			return apperrors.ErrBalanceInsufficient.WithMessage("用户余额不足，无法通过该提现申请")
		}

		ok, err := s.txnRepo.UpdateStatus(ctx, tx, requestID, models.TransactionStatusPending, models.TransactionStatusApproved)
		if err != nil {
			return apperrors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return apperrors.ErrWithdrawStatusInvalid
		}

		debit, err = s.post(ctx, tx, &CreditInput{
			UserID:      req.UserID,
			Amount:      amount.Neg(),
			Type:        models.TransactionTypeWithdrawal,
			Description: fmt.Sprintf("提现申请 #%d 审核通过", requestID),
		})
		if err != nil {
			return err
		}

		return s.notifyReview(ctx, tx, user, requestID, amount, models.TransactionStatusApproved, "")
	})
	if err != nil {
		return nil, err
	}

	logger.Info("withdrawal approved", logger.AdminID(adminID), logger.Int64("request_id", requestID))
	return debit, nil
}

// RejectWithdrawal 驳回提现申请，余额不变
func (s *WalletService) RejectWithdrawal(ctx context.Context, adminID, requestID int64, reason string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, user, err := s.lockPendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}

		ok, err := s.txnRepo.UpdateStatus(ctx, tx, requestID, models.TransactionStatusPending, models.TransactionStatusRejected)
		if err != nil {
			return apperrors.ErrDatabaseError.WithError(err)
		}
		if !ok {
			return apperrors.ErrWithdrawStatusInvalid
		}

		return s.notifyReview(ctx, tx, user, requestID, req.Amount.Abs(), models.TransactionStatusRejected, reason)
	})
	if err != nil {
		return err
	}

	logger.Info("withdrawal rejected",
		logger.AdminID(adminID),
		logger.Int64("request_id", requestID),
		logger.String("reason", reason),
	)
	return nil
}

// lockPendingRequest 锁定待审核申请及其用户
func (s *WalletService) lockPendingRequest(ctx context.Context, tx *gorm.DB, requestID int64) (*models.Transaction, *models.User, error) {
	req, err := s.txnRepo.GetForUpdate(ctx, tx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrWithdrawNotFound
		}
		return nil, nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if req.Type != models.TransactionTypeWithdrawalRequest {
		return nil, nil, apperrors.ErrWithdrawNotFound
	}
	if req.Status == nil || *req.Status != models.TransactionStatusPending {
		return nil, nil, apperrors.ErrWithdrawStatusInvalid
	}

	user, err := s.userRepo.GetForUpdate(ctx, tx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrUserNotFound
		}
		return nil, nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return req, user, nil
}

func (s *WalletService) notifyReview(ctx context.Context, tx *gorm.DB, user *models.User, requestID int64, amount decimal.Decimal, result, reason string) error {
	if s.outbox == nil || user.Phone == nil {
		return nil
	}
	return s.outbox.Enqueue(ctx, tx, &notification.Message{
		EventType: models.OutboxEventWithdrawalReviewed,
		Channel:   models.OutboxChannelSMS,
		Recipient: *user.Phone,
		Template:  sms.TemplateWithdrawalReviewed,
		Data: map[string]interface{}{
			"request_id": requestID,
			"amount":     amount.String(),
			"result":     result,
			"reason":     reason,
		},
	})
}

// Summary 钱包概览
type Summary struct {
	UserID             int64           `json:"user_id"`
	Balance            decimal.Decimal `json:"balance"`
	PendingWithdrawals decimal.Decimal `json:"pending_withdrawals"`
	AvailableBalance   decimal.Decimal `json:"available_balance"`
	TotalCommission    decimal.Decimal `json:"total_commission"`
	TotalWithdrawn     decimal.Decimal `json:"total_withdrawn"`
}

// GetWalletSummary 获取钱包概览
func (s *WalletService) GetWalletSummary(ctx context.Context, userID int64) (*Summary, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	pending, err := s.txnRepo.SumPendingWithdrawals(ctx, nil, userID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	commission, err := s.txnRepo.SumByType(ctx, userID, models.TransactionTypeCommission)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	withdrawn, err := s.txnRepo.SumByType(ctx, userID, models.TransactionTypeWithdrawal)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	available := user.WalletBalance
	if s.opts.ReserveOnRequest {
		available = utils.ClampNonNegative(available.Sub(pending))
	}

	return &Summary{
		UserID:             userID,
		Balance:            user.WalletBalance,
		PendingWithdrawals: pending,
		AvailableBalance:   available,
		TotalCommission:    commission,
		TotalWithdrawn:     withdrawn.Abs(),
	}, nil
}

// ListTransactions 获取用户流水，typ 为空表示全部类型
func (s *WalletService) ListTransactions(ctx context.Context, userID int64, typ string, page utils.Pagination) ([]*models.Transaction, int64, error) {
	if typ != "" && !models.IsTransactionType(typ) {
		return nil, 0, apperrors.ErrInvalidParams.WithMessage("无效的流水类型")
	}
	page.Normalize()
	list, total, err := s.txnRepo.List(ctx, &repository.TransactionFilter{UserID: &userID, Type: typ}, page.GetOffset(), page.PageSize)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// ListWithdrawals 管理端提现申请列表
func (s *WalletService) ListWithdrawals(ctx context.Context, status string, page utils.Pagination) ([]*models.Transaction, int64, error) {
	page.Normalize()
	list, total, err := s.txnRepo.List(ctx, &repository.TransactionFilter{
		Type:   models.TransactionTypeWithdrawalRequest,
		Status: status,
	}, page.GetOffset(), page.PageSize)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// RevealAccount 管理端查看提现账户明文
func (s *WalletService) RevealAccount(ctx context.Context, requestID int64) (string, error) {
	txn, err := s.txnRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrWithdrawNotFound
		}
		return "", apperrors.ErrDatabaseError.WithError(err)
	}
	if txn.AccountEncrypted == nil {
		return "", apperrors.ErrWithdrawNotFound
	}
	if s.cipher == nil {
		return "", apperrors.ErrInternalError.WithMessage("未配置账户加密密钥")
	}
	account, err := s.cipher.Decrypt(*txn.AccountEncrypted)
	if err != nil {
		return "", apperrors.ErrInternalError.WithError(err)
	}
	return account, nil
}
