package wallet

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/metrics"
)

// Drift 余额与流水汇总不一致的用户
type Drift struct {
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	LedgerSum decimal.Decimal `json:"ledger_sum"`
}

// ReconcileReport 对账结果
type ReconcileReport struct {
	Checked int      `json:"checked"`
	Drifts  []*Drift `json:"drifts"`
}

// Reconcile 逐个用户比对余额与计入余额的流水之和，只记录不修正
func (s *WalletService) Reconcile(ctx context.Context, batchSize int) (*ReconcileReport, error) {
	if batchSize <= 0 {
		batchSize = 200
	}
	report := &ReconcileReport{}

	var after int64
	for {
		ids, err := s.userRepo.ListIDsAfter(ctx, after, batchSize)
		if err != nil {
			return nil, apperrors.ErrDatabaseError.WithError(err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			balance, sum, err := s.snapshotLedger(ctx, id)
			if err != nil {
				return nil, apperrors.ErrDatabaseError.WithError(err)
			}
			report.Checked++
			if !sum.Equal(balance) {
				report.Drifts = append(report.Drifts, &Drift{UserID: id, Balance: balance, LedgerSum: sum})
				logger.Warn("wallet ledger drift",
					logger.UserID(id),
					logger.Amount("balance", balance),
					logger.Amount("ledger_sum", sum),
				)
			}
		}
		after = ids[len(ids)-1]
	}

	metrics.GetMetrics().SetLedgerDrift(len(report.Drifts))
	return report, nil
}

// snapshotLedger 持有用户行锁读取余额和流水汇总，入账与之串行
func (s *WalletService) snapshotLedger(ctx context.Context, userID int64) (balance, sum decimal.Decimal, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		balance = user.WalletBalance
		sum, err = s.txnRepo.SumBalanceAffecting(ctx, tx, userID)
		return err
	})
	return balance, sum, err
}
