package order

import (
	"context"

	"github.com/shopspring/decimal"

	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/models"
)

// CartLine 购物车行，价格以服务端商品表为准
type CartLine struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// maxLineQuantity 单行数量上限
const maxLineQuantity = 999

// priceCart 生成订单项快照并计算小计，同一商品多行合并
func (s *OrderService) priceCart(ctx context.Context, lines []CartLine) ([]models.OrderItem, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, apperrors.ErrCartEmpty
	}

	qty := make(map[int64]int, len(lines))
	order := make([]int64, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 || l.Quantity > maxLineQuantity {
			return nil, decimal.Zero, apperrors.ErrInvalidParams.WithMessage("商品数量无效")
		}
		if _, ok := qty[l.ProductID]; !ok {
			order = append(order, l.ProductID)
		}
		qty[l.ProductID] += l.Quantity
	}

	products, err := s.productRepo.GetByIDs(ctx, order)
	if err != nil {
		return nil, decimal.Zero, apperrors.ErrDatabaseError.WithError(err)
	}

	items := make([]models.OrderItem, 0, len(order))
	subtotal := decimal.Zero
	for _, id := range order {
		p, ok := products[id]
		if !ok {
			return nil, decimal.Zero, apperrors.ErrProductNotFound
		}
		if !p.IsOnSale {
			return nil, decimal.Zero, apperrors.ErrProductOffShelf.WithMessage("商品已下架: " + p.Name)
		}
		line := p.Price.Mul(decimal.NewFromInt(int64(qty[id])))
		items = append(items, models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    qty[id],
			LineTotal:   line,
		})
		subtotal = subtotal.Add(line)
	}
	return items, subtotal, nil
}
