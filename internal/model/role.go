package model

// Role represents user roles in the system
type Role struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Code        string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Privileges  []Privilege `gorm:"many2many:role_privileges;" json:"privileges,omitempty"`
}

const (
	RoleMasterAdmin = "MASTER_ADMIN"
	RoleAdmin       = "ADMIN"
	RoleCashier     = "CASHIER"
	RoleCustomer    = "CUSTOMER"
)

func IsAdminRole(code string) bool {
	return code == RoleMasterAdmin || code == RoleAdmin
}

// IsStaffRole reports whether the role works the till.
func IsStaffRole(code string) bool {
	return IsAdminRole(code) || code == RoleCashier
}

var DefaultRoles = []Role{
	{
		Code:        RoleMasterAdmin,
		Name:        "Master Administrator",
		Description: "Full system access with all privileges",
	},
	{
		Code:        RoleAdmin,
		Name:        "Administrator",
		Description: "Store management without user administration",
	},
	{
		Code:        RoleCashier,
		Name:        "Cashier",
		Description: "POS seller, earns commission on completed sales",
	},
	{
		Code:        RoleCustomer,
		Name:        "Customer",
		Description: "Online shopper",
	},
}

// RolePrivileges lists the privilege codes seeded for non-master roles.
// MASTER_ADMIN receives every privilege.
var RolePrivileges = map[string][]string{
	RoleAdmin: {
		"user:view", "product:view", "product:create", "product:update",
		"order:view", "order:create", "order:update",
		"inventory:view", "inventory:update",
		"commission:view", "commission:pay", "dashboard:view",
	},
	RoleCashier: {
		"product:view", "order:view", "order:create", "inventory:view", "commission:view",
	},
	RoleCustomer: {
		"product:view", "order:create",
	},
}
