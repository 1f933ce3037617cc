package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/testutil"
)

func TestProductRepository_GetByIDs(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	onSale := &models.Product{Name: "颈椎按摩仪", Price: decimal.NewFromInt(45000), IsOnSale: true}
	offShelf := &models.Product{Name: "旧款", Price: decimal.NewFromInt(100), IsOnSale: false}
	require.NoError(t, repo.Create(ctx, onSale))
	require.NoError(t, repo.Create(ctx, offShelf))

	got, err := repo.GetByIDs(ctx, []int64{onSale.ID, offShelf.ID, 9999})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got[onSale.ID].Price.Equal(decimal.NewFromInt(45000)))
	assert.False(t, got[offShelf.ID].IsOnSale)
	assert.Nil(t, got[9999])
}
