package distribution

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/metrics"
	"github.com/dumeirei/storefront-backend/internal/common/utils"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/service/wallet"
)

var hundred = decimal.NewFromInt(100)

// Creditor 钱包入账（wallet.WalletService 实现）
type Creditor interface {
	CreditTx(ctx context.Context, tx *gorm.DB, in *wallet.CreditInput) (decimal.Decimal, error)
}

// Credit 一笔已入账的佣金
type Credit struct {
	Level      int             `json:"level"`
	UserID     int64           `json:"user_id"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// CommissionService 佣金分配
type CommissionService struct {
	wallet Creditor
	scale  int32
}

// NewCommissionService 创建佣金分配服务，scale 为金额保留小数位
func NewCommissionService(w Creditor, scale int32) *CommissionService {
	return &CommissionService{wallet: w, scale: scale}
}

// Distribute 按层级比例给邀请链入账，必须在订单事务内调用。
// 比例 <= 0 的层级视为截断，后续层级不再分配；任一入账失败返回错误，由调用方回滚整个订单。
// 每级四舍五入后不超过截至该级的比例上限（按 scale 向下取整），累计佣金不会超过 订单金额×比例之和/100。
func (s *CommissionService) Distribute(ctx context.Context, tx *gorm.DB, order *models.Order, chain []*models.User, percentages []decimal.Decimal) ([]*Credit, error) {
	var (
		credits  []*Credit
		total    decimal.Decimal
		pctSum   decimal.Decimal
		orderID  = order.ID
		levelCap = len(percentages)
	)

	for i, beneficiary := range chain {
		if i >= levelCap {
			break
		}
		pct := percentages[i]
		if !pct.IsPositive() {
			break
		}
		pctSum = pctSum.Add(pct)

		amount := utils.PercentOf(order.TotalAmount, pct, s.scale)
		ceiling := order.TotalAmount.Mul(pctSum).Div(hundred).Truncate(s.scale).Sub(total)
		if amount.GreaterThan(ceiling) {
			amount = ceiling
		}
		if !amount.IsPositive() {
			continue
		}

		level := i + 1
		if _, err := s.wallet.CreditTx(ctx, tx, &wallet.CreditInput{
			UserID:      beneficiary.ID,
			Amount:      amount,
			Type:        models.TransactionTypeCommission,
			OrderID:     &orderID,
			Level:       &level,
			Description: fmt.Sprintf("level %d 佣金，订单 %s", level, order.OrderNo),
		}); err != nil {
			return nil, err
		}

		credits = append(credits, &Credit{Level: level, UserID: beneficiary.ID, Percentage: pct, Amount: amount})
		total = total.Add(amount)
	}

	bound := order.TotalAmount.Mul(pctSum).Div(hundred)
	if total.GreaterThan(bound) {
		logger.Error("commission total exceeds bound",
			logger.OrderNo(order.OrderNo),
			logger.Amount("total", total),
			logger.Amount("bound", bound),
		)
		return nil, apperrors.ErrCommissionIntegrity
	}

	m := metrics.GetMetrics()
	for _, c := range credits {
		m.RecordCommission(c.Level, c.Amount.InexactFloat64())
	}
	return credits, nil
}
