//go:build integration

package order

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-backend/internal/common/cache"
	apperrors "github.com/dumeirei/storefront-backend/internal/common/errors"
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/dumeirei/storefront-backend/internal/testutil"
)

// 行锁下并发下单只有 usage_limit 个订单能核销同一张券
func TestCreateOrder_ConcurrentCouponRedemption(t *testing.T) {
	db := testutil.NewPostgresDB(t)
	f := newFixture(t, fixtureOpts{db: db})
	ctx := context.Background()

	const buyers = 8
	const limit = 3
	product := testutil.CreateProduct(t, db, "按摩椅", 500000)
	testutil.CreatePercentCoupon(t, db, "RACE", 10, limit)

	users := make([]*models.User, buyers)
	for i := range users {
		users[i] = testutil.CreateUser(t, db, nil, 0)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := f.svc.CreateOrder(ctx, userID, cashRequest(product.ID, 1, "RACE"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, apperrors.ErrCouponExhausted):
				exhausted++
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, limit, succeeded)
	assert.Equal(t, buyers-limit, exhausted)
	assert.EqualValues(t, limit, testutil.Count(t, db, &models.CouponRedemption{}))

	var coupon models.Coupon
	require.NoError(t, db.Where("code = ?", "RACE").First(&coupon).Error)
	assert.Equal(t, limit, coupon.UsageCount)
	// 扣款后才发现券已用完的订单都已退款
	assert.Equal(t, f.gw.ChargeCount()-limit, f.gw.RefundCount())
}

func TestCreateOrder_CheckoutLockWithRedis(t *testing.T) {
	db := testutil.NewPostgresDB(t)
	client := testutil.NewRedisClient(t)
	locker := cache.NewLocker(client)
	f := newFixture(t, fixtureOpts{db: db, locker: locker})
	ctx := context.Background()

	product := testutil.CreateProduct(t, db, "足浴盆", 200000)
	buyer := testutil.CreateUser(t, db, nil, 0)

	lock, err := locker.Acquire(ctx, cache.BuildKey(cache.KeyPrefixCheckoutLock, strconv.FormatInt(buyer.ID, 10)), f.svc.opts.CheckoutLockTTL)
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, buyer.ID, cashRequest(product.ID, 1, ""))
	assert.ErrorIs(t, err, apperrors.ErrCheckoutInProgress)

	require.NoError(t, lock.Release(ctx))
	_, err = f.svc.CreateOrder(ctx, buyer.ID, cashRequest(product.ID, 1, ""))
	assert.NoError(t, err)
}
