package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/database"
	"github.com/dumeirei/storefront-backend/internal/models"
)

// OrderRepository 订单仓储
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create 创建订单（连同订单项）
func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return conn(ctx, r.db, tx).Create(order).Error
}

// GetByID 根据 ID 获取订单
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByIDWithItems 获取订单及订单项
func (r *OrderRepository) GetByIDWithItems(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// GetForUpdate 获取订单（加锁）
func (r *OrderRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.Order, error) {
	var order models.Order
	if err := database.ForUpdate(tx.WithContext(ctx)).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus 从 from 状态更新为 to 状态，返回是否命中
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, from, to string) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListByUser 获取用户订单列表
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]*models.Order, int64, error) {
	var orders []*models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Scopes(database.OrderByCreatedDesc).Offset(offset).Limit(limit).Find(&orders).Error
	return orders, total, err
}

// List 管理端订单列表，status 为空表示全部
func (r *OrderRepository) List(ctx context.Context, status string, offset, limit int) ([]*models.Order, int64, error) {
	var orders []*models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Scopes(database.OrderByCreatedDesc).Offset(offset).Limit(limit).Find(&orders).Error
	return orders, total, err
}
