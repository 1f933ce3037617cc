package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/crypto"
	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/utils"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
	"github.com/dumeirei/storefront-backend/internal/service/notification"
	"github.com/dumeirei/storefront-backend/internal/testutil"
)

func setupWallet(t *testing.T, opts Options) (*WalletService, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	cipher, err := crypto.NewCipher("test-secret")
	require.NoError(t, err)
	return newWalletService(db, cipher, opts), db
}

func newWalletService(db *gorm.DB, cipher *crypto.Cipher, opts Options) *WalletService {
	if opts.MinWithdrawAmount.IsZero() {
		opts.MinWithdrawAmount = decimal.NewFromInt(100)
	}
	return NewWalletService(db,
		repository.NewUserRepository(db),
		repository.NewTransactionRepository(db),
		notification.NewOutbox(repository.NewOutboxRepository(db)),
		cipher,
		opts,
	)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func balanceOf(t *testing.T, db *gorm.DB, id int64) decimal.Decimal {
	t.Helper()
	var u models.User
	require.NoError(t, db.First(&u, id).Error)
	return u.WalletBalance
}

func TestWalletService_Credit(t *testing.T) {
	svc, db := setupWallet(t, Options{})
	ctx := context.Background()
	u := testutil.CreateUser(t, db, nil, 0)

	t.Run("入账更新余额并写流水", func(t *testing.T) {
		bal, err := svc.Credit(ctx, &CreditInput{UserID: u.ID, Amount: dec(500), Type: models.TransactionTypeDeposit, Description: "充值"})
		require.NoError(t, err)
		assert.True(t, dec(500).Equal(bal))
		assert.True(t, dec(500).Equal(balanceOf(t, db, u.ID)))

		var txn models.Transaction
		require.NoError(t, db.Where("user_id = ?", u.ID).First(&txn).Error)
		assert.True(t, dec(500).Equal(txn.BalanceAfter))
	})

	t.Run("扣减超过余额", func(t *testing.T) {
		_, err := svc.Credit(ctx, &CreditInput{UserID: u.ID, Amount: dec(-501), Type: models.TransactionTypePurchase})
		assert.ErrorIs(t, err, apperrors.ErrBalanceInsufficient)
		assert.True(t, dec(500).Equal(balanceOf(t, db, u.ID)))
	})

	t.Run("参数非法", func(t *testing.T) {
		_, err := svc.Credit(ctx, &CreditInput{UserID: u.ID, Amount: decimal.Zero, Type: models.TransactionTypeDeposit})
		assert.ErrorIs(t, err, apperrors.ErrInvalidParams)

		_, err = svc.Credit(ctx, &CreditInput{UserID: u.ID, Amount: dec(1), Type: models.TransactionTypeWithdrawalRequest})
		assert.ErrorIs(t, err, apperrors.ErrInvalidParams)

		_, err = svc.Credit(ctx, &CreditInput{UserID: u.ID, Amount: dec(1), Type: "bonus"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidParams)
	})

	t.Run("用户不存在", func(t *testing.T) {
		_, err := svc.Credit(ctx, &CreditInput{UserID: 99999, Amount: dec(1), Type: models.TransactionTypeDeposit})
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}

func TestWalletService_CreditTx_RollsBackWithCaller(t *testing.T) {
	svc, db := setupWallet(t, Options{})
	ctx := context.Background()
	u := testutil.CreateUser(t, db, nil, 0)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.CreditTx(ctx, tx, &CreditInput{UserID: u.ID, Amount: dec(100), Type: models.TransactionTypeCommission})
		require.NoError(t, err)
		return errors.New("later step failed")
	})
	require.Error(t, err)
	assert.True(t, balanceOf(t, db, u.ID).IsZero())
	assert.Equal(t, int64(0), testutil.Count(t, db, &models.Transaction{}))
}

func TestWalletService_ConcurrentCredits(t *testing.T) {
	svc, db := setupWallet(t, Options{})
	u := testutil.CreateUser(t, db, nil, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Credit(context.Background(), &CreditInput{UserID: u.ID, Amount: dec(10), Type: models.TransactionTypeCommission})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, dec(100).Equal(balanceOf(t, db, u.ID)))
	report, err := svc.Reconcile(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestWalletService_RequestWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("校验", func(t *testing.T) {
		svc, db := setupWallet(t, Options{})
		u := testutil.CreateUser(t, db, nil, 1000)

		_, err := svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(200), Account: "  "})
		assert.ErrorIs(t, err, apperrors.ErrAccountRequired)

		_, err = svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(99), Account: "6222000011112222"})
		assert.ErrorIs(t, err, apperrors.ErrWithdrawBelowMinimum)

		_, err = svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(1001), Account: "6222000011112222"})
		assert.ErrorIs(t, err, apperrors.ErrBalanceInsufficient)
		assert.True(t, apperrors.IsKind(err, apperrors.KindInsufficientFunds))
	})

	t.Run("写入待审核负数流水且不扣余额", func(t *testing.T) {
		svc, db := setupWallet(t, Options{})
		u := testutil.CreateUser(t, db, nil, 1000)

		txn, err := svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(600), Account: "6222000011112222"})
		require.NoError(t, err)
		assert.True(t, dec(-600).Equal(txn.Amount))
		assert.Equal(t, models.TransactionStatusPending, *txn.Status)
		assert.Nil(t, txn.OrderID)
		assert.Contains(t, txn.Description, "2222")
		assert.NotContains(t, *txn.AccountEncrypted, "6222")
		assert.True(t, dec(1000).Equal(balanceOf(t, db, u.ID)))

		plain, err := svc.RevealAccount(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, "6222000011112222", plain)

		// 默认不占用余额：同一笔钱可再次申请
		_, err = svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(600), Account: "6222000011112222"})
		assert.NoError(t, err)
	})

	t.Run("开启占用后重复申请被拒", func(t *testing.T) {
		svc, db := setupWallet(t, Options{ReserveOnRequest: true})
		u := testutil.CreateUser(t, db, nil, 1000)

		_, err := svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(600), Account: "acct-1"})
		require.NoError(t, err)
		_, err = svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(600), Account: "acct-1"})
		assert.ErrorIs(t, err, apperrors.ErrBalanceInsufficient)

		summary, err := svc.GetWalletSummary(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, dec(400).Equal(summary.AvailableBalance))
		assert.True(t, dec(600).Equal(summary.PendingWithdrawals))
	})

	t.Run("未配置加密密钥", func(t *testing.T) {
		db := testutil.NewTestDB(t)
		svc := newWalletService(db, nil, Options{})
		u := testutil.CreateUser(t, db, nil, 1000)

		var err error
		assert.NotPanics(t, func() {
			_, err = svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(200), Account: "6222000011112222"})
		})
		assert.ErrorIs(t, err, apperrors.ErrInternalError)

		var count int64
		require.NoError(t, db.Model(&models.Transaction{}).Where("user_id = ?", u.ID).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestWalletService_ReviewWithdrawal(t *testing.T) {
	ctx := context.Background()
	svc, db := setupWallet(t, Options{})
	u := testutil.CreateUser(t, db, nil, 0)
	_, err := svc.Credit(ctx, &CreditInput{UserID: u.ID, Amount: dec(1000), Type: models.TransactionTypeCommission})
	require.NoError(t, err)

	req, err := svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(300), Account: "acct"})
	require.NoError(t, err)

	t.Run("审核通过扣减余额", func(t *testing.T) {
		debit, err := svc.ApproveWithdrawal(ctx, 1, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionTypeWithdrawal, debit.Type)
		assert.True(t, dec(-300).Equal(debit.Amount))
		assert.True(t, dec(700).Equal(debit.BalanceAfter))
		assert.True(t, dec(700).Equal(balanceOf(t, db, u.ID)))

		var stored models.Transaction
		require.NoError(t, db.First(&stored, req.ID).Error)
		assert.Equal(t, models.TransactionStatusApproved, *stored.Status)

		assert.Equal(t, int64(1), testutil.Count(t, db, &models.OutboxEvent{}))
	})

	t.Run("重复审核", func(t *testing.T) {
		_, err := svc.ApproveWithdrawal(ctx, 1, req.ID)
		assert.ErrorIs(t, err, apperrors.ErrWithdrawStatusInvalid)
		assert.ErrorIs(t, svc.RejectWithdrawal(ctx, 1, req.ID, "x"), apperrors.ErrWithdrawStatusInvalid)
	})

	t.Run("驳回不影响余额", func(t *testing.T) {
		req2, err := svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(200), Account: "acct"})
		require.NoError(t, err)
		require.NoError(t, svc.RejectWithdrawal(ctx, 1, req2.ID, "账户信息有误"))
		assert.True(t, dec(700).Equal(balanceOf(t, db, u.ID)))
	})

	t.Run("审核时余额已不足", func(t *testing.T) {
		req3, err := svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(700), Account: "acct"})
		require.NoError(t, err)
		req4, err := svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(700), Account: "acct"})
		require.NoError(t, err)

		_, err = svc.ApproveWithdrawal(ctx, 1, req3.ID)
		require.NoError(t, err)
		_, err = svc.ApproveWithdrawal(ctx, 1, req4.ID)
		assert.ErrorIs(t, err, apperrors.ErrBalanceInsufficient)
		assert.True(t, balanceOf(t, db, u.ID).IsZero())
	})

	t.Run("非提现申请", func(t *testing.T) {
		var commission models.Transaction
		require.NoError(t, db.Where("type = ?", models.TransactionTypeCommission).First(&commission).Error)
		_, err := svc.ApproveWithdrawal(ctx, 1, commission.ID)
		assert.ErrorIs(t, err, apperrors.ErrWithdrawNotFound)
		_, err = svc.ApproveWithdrawal(ctx, 1, 99999)
		assert.ErrorIs(t, err, apperrors.ErrWithdrawNotFound)
	})

	t.Run("账本与余额一致", func(t *testing.T) {
		report, err := svc.Reconcile(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Checked)
		assert.Empty(t, report.Drifts)
	})
}

func TestWalletService_SummaryAndList(t *testing.T) {
	ctx := context.Background()
	svc, db := setupWallet(t, Options{})
	u := testutil.CreateUser(t, db, nil, 0)

	_, err := svc.Credit(ctx, &CreditInput{UserID: u.ID, Amount: dec(450), Type: models.TransactionTypeCommission, Level: utils.IntPtr(1)})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, &CreditInput{UserID: u.ID, Amount: dec(50), Type: models.TransactionTypeDeposit})
	require.NoError(t, err)
	_, err = svc.RequestWithdrawal(ctx, u.ID, &WithdrawRequest{Amount: dec(100), Account: "acct"})
	require.NoError(t, err)

	summary, err := svc.GetWalletSummary(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, dec(500).Equal(summary.Balance))
	assert.True(t, dec(500).Equal(summary.AvailableBalance))
	assert.True(t, dec(450).Equal(summary.TotalCommission))
	assert.True(t, dec(100).Equal(summary.PendingWithdrawals))
	assert.True(t, summary.TotalWithdrawn.IsZero())

	list, total, err := svc.ListTransactions(ctx, u.ID, "", utils.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 3)

	list, total, err = svc.ListTransactions(ctx, u.ID, models.TransactionTypeCommission, utils.Pagination{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, 1, *list[0].Level)

	_, _, err = svc.ListTransactions(ctx, u.ID, "bonus", utils.Pagination{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidParams)

	pending, total, err := svc.ListWithdrawals(ctx, models.TransactionStatusPending, utils.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, u.ID, pending[0].UserID)

	_, err = svc.GetWalletSummary(ctx, 99999)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestWalletService_ReconcileDetectsDrift(t *testing.T) {
	svc, db := setupWallet(t, Options{})
	// 直接写入余额，不经过账本
	testutil.CreateUser(t, db, nil, 300)
	clean := testutil.CreateUser(t, db, nil, 0)
	_, err := svc.Credit(context.Background(), &CreditInput{UserID: clean.ID, Amount: dec(5), Type: models.TransactionTypeDeposit})
	require.NoError(t, err)

	report, err := svc.Reconcile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Drifts, 1)
	assert.True(t, dec(300).Equal(report.Drifts[0].Balance))
	assert.True(t, report.Drifts[0].LedgerSum.IsZero())
}
