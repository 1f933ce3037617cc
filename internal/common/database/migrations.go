package database

import (
	"github.com/dumeirei/storefront-backend/internal/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrations 按 ID 顺序执行，已执行的版本记录在 migrations 表中
var migrations = []*gormigrate.Migration{
	{
		ID: "202601010001_create_users_products",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.User{}, &models.Product{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("products", "users")
		},
	},
	{
		ID: "202601010002_create_coupons",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Coupon{}, &models.CouponRedemption{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("coupon_redemptions", "coupons")
		},
	},
	{
		ID: "202601010003_create_orders",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Order{}, &models.OrderItem{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("order_items", "orders")
		},
	},
	{
		ID: "202601010004_create_ledger",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Transaction{}, &models.CommissionSetting{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("commission_settings", "transactions")
		},
	},
	{
		ID: "202601010005_create_outbox",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.OutboxEvent{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("outbox_events")
		},
	},
}

// Migrate 执行全部数据库迁移
func Migrate(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, migrations).Migrate()
}

// RollbackLast 回滚最近一次迁移
func RollbackLast(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, migrations).RollbackLast()
}
