package main

import (
	"context"
	"errors"
	"fmt"

	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/logger"

	"gorm.io/gorm"
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Privilege{},
		&model.Role{},
		&model.User{},
		&model.Product{},
		&model.InventoryRecord{},
		&model.Order{},
		&model.OrderItem{},
		&model.StockMovement{},
	)
}

// seedPrivilegesRolesAndAdmin creates default privileges, roles, and the master admin if they don't exist.
// Role privilege sets are re-synced on every boot so new privileges reach existing roles.
func seedPrivilegesRolesAndAdmin(ctx context.Context, db *gorm.DB, adminEmail, adminPass string, log *logger.Logger) error {
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	userRepo := repository.NewUserRepo(db)

	// 1. Seed privileges first
	if err := privilegeRepo.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed privileges: %w", err)
	}

	// 2. Seed roles
	if err := roleRepo.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	// 3. Assign privileges to roles
	allPrivileges, err := privilegeRepo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load privileges: %w", err)
	}
	// MASTER_ADMIN gets ALL privileges
	if err := roleRepo.SyncPrivileges(ctx, model.RoleMasterAdmin, allPrivileges); err != nil {
		return fmt.Errorf("sync %s privileges: %w", model.RoleMasterAdmin, err)
	}
	for code, codes := range model.RolePrivileges {
		privileges, err := privilegeRepo.FindByCodes(ctx, codes)
		if err != nil {
			return fmt.Errorf("load %s privileges: %w", code, err)
		}
		if err := roleRepo.SyncPrivileges(ctx, code, privileges); err != nil {
			return fmt.Errorf("sync %s privileges: %w", code, err)
		}
	}

	// 4. Create default admin user with MASTER_ADMIN role
	_, err = userRepo.FindByEmail(ctx, adminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	masterRole, err := roleRepo.FindByCode(ctx, model.RoleMasterAdmin)
	if err != nil {
		return fmt.Errorf("load master role: %w", err)
	}
	admin := &model.User{
		Email:      adminEmail,
		FullName:   "Master Administrator",
		RoleID:     &masterRole.ID,
		IsActive:   true,
		Privileges: masterRole.Privileges,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"
	if err := admin.SetPassword(adminPass); err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	log.Info(log.WithField(ctx, "email", adminEmail), "admin user created")
	return nil
}
