// Package database 数据库模块单元测试
package database

import (
	"testing"

	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, getLogLevel(true))
	assert.Equal(t, logger.Silent, getLogLevel(false))
}

func TestMigrate(t *testing.T) {
	db := openMemoryDB(t)

	require.NoError(t, Migrate(db))
	// 重复执行是幂等的
	require.NoError(t, Migrate(db))

	for _, table := range []string{
		"users", "products", "coupons", "coupon_redemptions",
		"orders", "order_items", "transactions", "commission_settings", "outbox_events",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	t.Run("回滚最近一次迁移", func(t *testing.T) {
		require.NoError(t, RollbackLast(db))
		assert.False(t, db.Migrator().HasTable("outbox_events"))
		assert.True(t, db.Migrator().HasTable("transactions"))
	})
}

func TestPaginate(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	for i := 1; i <= 30; i++ {
		require.NoError(t, db.Create(&models.Product{ID: int64(i), Name: "p"}).Error)
	}

	tests := []struct {
		name     string
		page     int
		pageSize int
		wantLen  int
		wantFrom int64
	}{
		{"第一页", 1, 10, 10, 1},
		{"第三页", 3, 10, 10, 21},
		{"超出范围", 4, 10, 0, 0},
		{"页码为零", 0, 10, 10, 1},
		{"页大小为零", 1, 0, 10, 1},
		{"页大小上限", 1, 500, 30, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var list []models.Product
			require.NoError(t, db.Order("id").Scopes(Paginate(tt.page, tt.pageSize)).Find(&list).Error)
			assert.Len(t, list, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFrom, list[0].ID)
			}
		})
	}
}

func TestForUpdate_IgnoredBySQLite(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	require.NoError(t, db.Create(&models.Product{ID: 1, Name: "p"}).Error)

	var p models.Product
	require.NoError(t, ForUpdate(db).First(&p, 1).Error)
	assert.Equal(t, "p", p.Name)
}
