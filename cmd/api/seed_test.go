package main

import (
	"context"
	"fmt"
	"testing"

	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate(db))
	return db
}

func TestSeedPrivilegesRolesAndAdmin(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// twice: seeding must be idempotent
	require.NoError(t, seedPrivilegesRolesAndAdmin(ctx, db, "admin@example.com", "admin123", logger.Nop()))
	require.NoError(t, seedPrivilegesRolesAndAdmin(ctx, db, "admin@example.com", "admin123", logger.Nop()))

	roleRepo := repository.NewRoleRepo(db)
	master, err := roleRepo.FindByCode(ctx, model.RoleMasterAdmin)
	require.NoError(t, err)
	assert.Len(t, master.Privileges, len(model.DefaultPrivileges))

	cashier, err := roleRepo.FindByCode(ctx, model.RoleCashier)
	require.NoError(t, err)
	codes := make([]string, 0, len(cashier.Privileges))
	for _, p := range cashier.Privileges {
		codes = append(codes, p.Code)
	}
	assert.ElementsMatch(t, model.RolePrivileges[model.RoleCashier], codes)

	var admins int64
	require.NoError(t, db.Model(&model.User{}).Where("email = ?", "admin@example.com").Count(&admins).Error)
	assert.EqualValues(t, 1, admins)

	admin, err := repository.NewUserRepo(db).FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.NotNil(t, admin.Role)
	assert.Equal(t, model.RoleMasterAdmin, admin.Role.Code)
	assert.True(t, admin.CheckPassword("admin123"))
}
