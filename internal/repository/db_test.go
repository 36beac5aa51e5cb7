package repository

import (
	"fmt"
	"testing"

	"go-marketplace-pos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Privilege{},
		&model.Role{},
		&model.User{},
		&model.Product{},
		&model.InventoryRecord{},
		&model.Order{},
		&model.OrderItem{},
		&model.StockMovement{},
	))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price int64) *model.Product {
	t.Helper()
	p := &model.Product{SKU: "SKU-" + uuid.NewString()[:8], Name: name, Price: price}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedRecord(t *testing.T, db *gorm.DB, productID uuid.UUID, v model.Variant, stock, reserved int) *model.InventoryRecord {
	t.Helper()
	rec := &model.InventoryRecord{ProductID: productID, Size: v.Size, Color: v.Color, Stock: stock, Reserved: reserved}
	require.NoError(t, db.Create(rec).Error)
	return rec
}
