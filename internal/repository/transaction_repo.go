package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/database"
	"github.com/dumeirei/storefront-backend/internal/models"
)

// TransactionRepository 钱包账本仓储，只追加不修改（提现申请的状态字段除外）
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建账本仓储
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create 写入流水
func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, txn *models.Transaction) error {
	return conn(ctx, r.db, tx).Create(txn).Error
}

// GetByID 根据 ID 获取流水
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetForUpdate 获取流水（加锁）
func (r *TransactionRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	if err := database.ForUpdate(tx.WithContext(ctx)).First(&txn, id).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpdateStatus 更新提现申请状态，仅当当前状态为 from 时生效
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, from, to string) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransactionFilter 流水查询过滤条件
type TransactionFilter struct {
	UserID  *int64
	OrderID *int64
	Type    string
	Status  string
}

// List 获取流水列表
func (r *TransactionRepository) List(ctx context.Context, filter *TransactionFilter, offset, limit int) ([]*models.Transaction, int64, error) {
	var list []*models.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	if filter != nil {
		if filter.UserID != nil {
			query = query.Where("user_id = ?", *filter.UserID)
		}
		if filter.OrderID != nil {
			query = query.Where("order_id = ?", *filter.OrderID)
		}
		if filter.Type != "" {
			query = query.Where("type = ?", filter.Type)
		}
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Scopes(database.OrderByCreatedDesc).Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// SumBalanceAffecting 汇总计入余额的流水金额（不含提现申请）
func (r *TransactionRepository) SumBalanceAffecting(ctx context.Context, tx *gorm.DB, userID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := conn(ctx, r.db, tx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type <> ?", userID, models.TransactionTypeWithdrawalRequest).
		Row().Scan(&sum)
	return sum, err
}

// SumPendingWithdrawals 汇总待审核提现申请金额（绝对值）
func (r *TransactionRepository) SumPendingWithdrawals(ctx context.Context, tx *gorm.DB, userID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := conn(ctx, r.db, tx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND status = ?", userID, models.TransactionTypeWithdrawalRequest, models.TransactionStatusPending).
		Row().Scan(&sum)
	return sum.Abs(), err
}

// SumByType 汇总某类型流水金额
func (r *TransactionRepository) SumByType(ctx context.Context, userID int64, typ string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ?", userID, typ).
		Row().Scan(&sum)
	return sum, err
}
