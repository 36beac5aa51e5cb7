package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrEmailExists = errors.New("email already exists")

type UserService interface {
	CreateUser(ctx context.Context, req *CreateUserRequest, actor Actor) (*model.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest, actor Actor) (*model.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID, actor Actor) error
	UpdateUserPrivileges(ctx context.Context, userID uuid.UUID, privilegeCodes []string, actor Actor) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]model.UserResponse, error)
	GetEmployees(ctx context.Context) ([]model.UserResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
	GetRoles(ctx context.Context) ([]model.Role, error)
	GetPrivileges(ctx context.Context) ([]model.Privilege, error)
}

type CreateUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=6"`
	FullName    string  `json:"full_name" validate:"required"`
	PhoneNumber string  `json:"phone_number" validate:"omitempty,msisdn"`
	BirthDate   *string `json:"birth_date"` // YYYY-MM-DD
	RoleID      uint    `json:"role_id" validate:"required"`
}

type UpdateUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=6"`
	FullName    string  `json:"full_name" validate:"required"`
	PhoneNumber string  `json:"phone_number" validate:"omitempty,msisdn"`
	BirthDate   *string `json:"birth_date"` // YYYY-MM-DD
	RoleID      uint    `json:"role_id" validate:"required"`
	IsActive    *bool   `json:"is_active"`
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
}

func NewUserService(userRepo repository.UserRepository, privilegeRepo repository.PrivilegeRepository, roleRepo repository.RoleRepository) UserService {
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
	}
}

func (s *userService) CreateUser(ctx context.Context, req *CreateUserRequest, actor Actor) (*model.User, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if existing, err := s.userRepo.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, ErrEmailExists, "Email already exists")
	}

	role, err := s.assignableRole(ctx, req.RoleID, actor)
	if err != nil {
		return nil, err
	}
	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:       email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		BirthDate:   birthDate,
		RoleID:      &role.ID,
		IsActive:    true,
	}
	user.CreatedBy = actor.IDString()
	user.UpdatedBy = actor.IDString()

	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to hash password")
	}

	// privileges start from the role defaults
	user.Privileges = role.Privileges

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "create user")
	}
	return s.userRepo.FindByID(ctx, user.ID)
}

func (s *userService) UpdateUser(ctx context.Context, userID uuid.UUID, req *UpdateUserRequest, actor Actor) (*model.User, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != user.Email {
		if existing, err := s.userRepo.FindByEmail(ctx, email); err == nil && existing != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, ErrEmailExists, "Email already exists")
		}
	}

	role, err := s.assignableRole(ctx, req.RoleID, actor)
	if err != nil {
		return nil, err
	}
	birthDate, err := parseBirthDate(req.BirthDate)
	if err != nil {
		return nil, err
	}
	roleChanged := user.RoleID == nil || *user.RoleID != role.ID

	user.Email = email
	user.FullName = req.FullName
	user.PhoneNumber = req.PhoneNumber
	user.BirthDate = birthDate
	user.RoleID = &role.ID
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = actor.IDString()

	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to hash password")
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "update user")
	}
	if roleChanged {
		if err := s.userRepo.UpdatePrivileges(ctx, user.ID, role.Privileges); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, err, "reset privileges")
		}
	}
	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) DeleteUser(ctx context.Context, userID uuid.UUID, actor Actor) error {
	if userID == actor.ID {
		return apperr.New(apperr.CodeValidation, "You cannot delete your own account")
	}
	user, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	if user.RoleCode() == model.RoleMasterAdmin {
		return apperr.New(apperr.CodeForbidden, "Master admin cannot be deleted")
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "delete user")
	}
	return nil
}

func (s *userService) UpdateUserPrivileges(ctx context.Context, userID uuid.UUID, privilegeCodes []string, actor Actor) (*model.User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	privileges, err := s.privilegeRepo.FindByCodes(ctx, privilegeCodes)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to find privileges")
	}
	if len(privileges) != len(privilegeCodes) {
		return nil, apperr.New(apperr.CodeValidation, "Unknown privilege code")
	}
	if err := s.userRepo.UpdatePrivileges(ctx, userID, privileges); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "update privileges")
	}
	user.UpdatedBy = actor.IDString()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "update user")
	}
	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list users")
	}
	return toResponses(users), nil
}

// GetEmployees lists the commission-earning staff.
func (s *userService) GetEmployees(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindByRole(ctx, model.RoleCashier)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list employees")
	}
	return toResponses(users), nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	response := user.ToResponse()
	return &response, nil
}

func (s *userService) GetRoles(ctx context.Context) ([]model.Role, error) {
	roles, err := s.roleRepo.FindAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list roles")
	}
	return roles, nil
}

func (s *userService) GetPrivileges(ctx context.Context) ([]model.Privilege, error) {
	privileges, err := s.privilegeRepo.FindAll(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "list privileges")
	}
	return privileges, nil
}

func (s *userService) find(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.CodeNotFound, ErrUserNotFound, "User not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load user")
	}
	return user, nil
}

// assignableRole loads the role. Only a master admin may hand out MASTER_ADMIN.
func (s *userService) assignableRole(ctx context.Context, roleID uint, actor Actor) (*model.Role, error) {
	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		return nil, apperr.New(apperr.CodeValidation, "Role not found")
	}
	if role.Code == model.RoleMasterAdmin && actor.Role != model.RoleMasterAdmin {
		return nil, apperr.New(apperr.CodeForbidden, "Only a master admin can assign this role")
	}
	return role, nil
}

func parseBirthDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, apperr.New(apperr.CodeValidation, "Invalid birth_date format, use YYYY-MM-DD")
	}
	return &parsed, nil
}

func toResponses(users []model.User) []model.UserResponse {
	responses := make([]model.UserResponse, len(users))
	for i := range users {
		responses[i] = users[i].ToResponse()
	}
	return responses
}
