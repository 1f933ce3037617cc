package marketing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/repository"
	"github.com/dumeirei/storefront-backend/internal/testutil"
)

func setupCouponService(t *testing.T) (*CouponService, *repository.CouponRepository) {
	db := testutil.NewTestDB(t)
	repo := repository.NewCouponRepository(db)
	return NewCouponService(db, repo, 0), repo
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestCouponService_Validate(t *testing.T) {
	svc, repo := setupCouponService(t)
	ctx := context.Background()
	db := svc.db

	testutil.CreatePercentCoupon(t, db, "SAVE10", 10, 1)

	t.Run("百分比优惠", func(t *testing.T) {
		res, err := svc.Validate(ctx, "save10", dec(1000000))
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.True(t, dec(100000).Equal(res.DiscountAmount), res.DiscountAmount.String())
	})

	t.Run("不存在", func(t *testing.T) {
		res, err := svc.Validate(ctx, "NOPE", dec(100))
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, ReasonNotFound, res.Reason)
		assert.NotEmpty(t, res.Message)
	})

	t.Run("空券码", func(t *testing.T) {
		_, err := svc.Validate(ctx, "  ", dec(100))
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("校验不修改使用次数", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := svc.Validate(ctx, "SAVE10", dec(500))
			require.NoError(t, err)
		}
		c, err := repo.GetByCode(ctx, "SAVE10")
		require.NoError(t, err)
		assert.Equal(t, 0, c.UsageCount)
	})

	t.Run("已过期", func(t *testing.T) {
		c := testutil.CreatePercentCoupon(t, db, "OLD", 10, 0)
		svc.SetClock(func() time.Time { return c.ExpiryDate.Add(time.Second) })
		defer svc.SetClock(time.Now)

		res, err := svc.Validate(ctx, "OLD", dec(500))
		require.NoError(t, err)
		assert.Equal(t, ReasonExpired, res.Reason)
	})

	t.Run("未启用", func(t *testing.T) {
		c := testutil.CreatePercentCoupon(t, db, "OFF", 10, 0)
		require.NoError(t, db.Model(c).Update("is_active", false).Error)

		res, err := svc.Validate(ctx, "OFF", dec(500))
		require.NoError(t, err)
		assert.Equal(t, ReasonInactive, res.Reason)
	})

	t.Run("未达最低消费", func(t *testing.T) {
		minValue := dec(1000)
		_, err := svc.CreateCoupon(ctx, &CreateCouponRequest{
			Code: "MIN1000", DiscountType: models.CouponTypeFixed, DiscountValue: dec(50),
			ExpiryDate: time.Now().Add(time.Hour), MinOrderValue: &minValue,
		})
		require.NoError(t, err)

		res, err := svc.Validate(ctx, "MIN1000", dec(999))
		require.NoError(t, err)
		assert.Equal(t, ReasonBelowMinimum, res.Reason)

		res, err = svc.Validate(ctx, "MIN1000", dec(1000))
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.True(t, dec(50).Equal(res.DiscountAmount))
	})
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		value string
		total string
		want  string
	}{
		{"百分比", models.CouponTypePercentage, "10", "1000000", "100000"},
		{"百分比四舍五入", models.CouponTypePercentage, "15", "333", "50"},
		{"固定金额", models.CouponTypeFixed, "50", "200", "50"},
		{"固定金额不超过订单", models.CouponTypeFixed, "500", "200", "200"},
		{"订单金额为零", models.CouponTypeFixed, "50", "0", "0"},
		{"未知类型", "bogus", "50", "200", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &models.Coupon{DiscountType: tt.typ, DiscountValue: decimal.RequireFromString(tt.value)}
			got := ComputeDiscount(c, decimal.RequireFromString(tt.total), 0)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), got.String())
		})
	}
}

func TestCouponService_Redeem(t *testing.T) {
	svc, repo := setupCouponService(t)
	ctx := context.Background()
	c := testutil.CreatePercentCoupon(t, svc.db, "SAVE10", 10, 1)

	r, err := svc.Redeem(ctx, c.ID, dec(1000000))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Coupon.UsageCount)
	assert.True(t, dec(100000).Equal(r.DiscountAmount))

	_, err = svc.Redeem(ctx, c.ID, dec(1000000))
	assert.True(t, errors.Is(err, apperrors.ErrCouponExhausted))
	assert.Equal(t, apperrors.KindCapacityExceeded, apperrors.KindOf(err))

	res, err := svc.Validate(ctx, "SAVE10", dec(1000000))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "capacity exhausted", res.Reason)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)
}

func TestCouponService_RedeemConcurrent(t *testing.T) {
	svc, repo := setupCouponService(t)
	ctx := context.Background()
	const limit = 3
	const callers = 12
	c := testutil.CreatePercentCoupon(t, svc.db, "RUSH", 10, limit)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Redeem(ctx, c.ID, dec(100))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperrors.ErrCouponExhausted):
				exhausted++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, limit, succeeded)
	assert.Equal(t, callers-limit, exhausted)

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, got.UsageCount)
}

func TestCouponService_CreateCoupon(t *testing.T) {
	svc, _ := setupCouponService(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	c, err := svc.CreateCoupon(ctx, &CreateCouponRequest{
		Code: "welcome", DiscountType: models.CouponTypePercentage, DiscountValue: dec(20), ExpiryDate: expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", c.Code)
	assert.True(t, c.IsActive)

	tests := []struct {
		name string
		req  CreateCouponRequest
		want *apperrors.AppError
	}{
		{"重复券码", CreateCouponRequest{Code: "Welcome", DiscountType: models.CouponTypeFixed, DiscountValue: dec(1), ExpiryDate: expiry}, apperrors.ErrCouponCodeExists},
		{"面额为零", CreateCouponRequest{Code: "Z", DiscountType: models.CouponTypeFixed, DiscountValue: dec(0), ExpiryDate: expiry}, apperrors.ErrCouponInvalidValue},
		{"百分比超过100", CreateCouponRequest{Code: "P", DiscountType: models.CouponTypePercentage, DiscountValue: dec(101), ExpiryDate: expiry}, apperrors.ErrCouponInvalidValue},
		{"未知类型", CreateCouponRequest{Code: "U", DiscountType: "bogo", DiscountValue: dec(1), ExpiryDate: expiry}, apperrors.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.CreateCoupon(ctx, &req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
