package repository

import (
	"context"
	"testing"

	"go-marketplace-pos/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	privRepo := NewPrivilegeRepo(db)
	roleRepo := NewRoleRepo(db)

	for i := 0; i < 2; i++ {
		require.NoError(t, privRepo.SeedDefaults(ctx))
		require.NoError(t, roleRepo.SeedDefaults(ctx))
	}

	privs, err := privRepo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, privs, len(model.DefaultPrivileges))

	roles, err := roleRepo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(model.DefaultRoles))

	cashierPrivs, err := privRepo.FindByCodes(ctx, model.RolePrivileges[model.RoleCashier])
	require.NoError(t, err)
	require.NoError(t, roleRepo.SyncPrivileges(ctx, model.RoleCashier, cashierPrivs))

	cashier, err := roleRepo.FindByCode(ctx, model.RoleCashier)
	require.NoError(t, err)
	assert.Len(t, cashier.Privileges, len(model.RolePrivileges[model.RoleCashier]))
}
