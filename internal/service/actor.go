package service

import (
	"go-marketplace-pos/internal/model"

	"github.com/google/uuid"
)

// Actor is the authenticated caller, as resolved by the auth middleware.
type Actor struct {
	ID         uuid.UUID
	Name       string
	Email      string
	Role       string
	Privileges []string
}

func (a Actor) IsAdmin() bool {
	return model.IsAdminRole(a.Role)
}

func (a Actor) IsStaff() bool {
	return model.IsStaffRole(a.Role)
}

func (a Actor) IDString() string {
	if a.ID == uuid.Nil {
		return ""
	}
	return a.ID.String()
}
