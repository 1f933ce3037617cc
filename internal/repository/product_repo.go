package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/models"
)

// ProductRepository 商品仓储（下单只读）
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create 创建商品
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// GetByIDs 批量获取商品，按 ID 索引
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	var products []*models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	m := make(map[int64]*models.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m, nil
}
