package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/jwt"
	"go-marketplace-pos/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSessionReplaced    = errors.New("session expired (logged in on another device)")
)

type AuthService interface {
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	ResetPassword(ctx context.Context, req *ResetPasswordRequest) error
	ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error)
	Authenticate(ctx context.Context, tokenString string) (*jwt.Claims, error)
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type LoginResponse struct {
	Token      string             `json:"token"`
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type TokenValidationResponse struct {
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
	events   events.Publisher
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager, publisher events.Publisher) AuthService {
	if publisher == nil {
		publisher = events.Discard
	}
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		events:   publisher,
	}
}

func (s *authService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.CodeUnauthorized, ErrInvalidCredentials, "Invalid email or password")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load user")
	}
	if !user.IsActive {
		return nil, apperr.Wrap(apperr.CodeForbidden, ErrUserInactive, "User account is inactive")
	}
	if !user.CheckPassword(req.Password) {
		return nil, apperr.Wrap(apperr.CodeUnauthorized, ErrInvalidCredentials, "Invalid email or password")
	}

	// a new token version invalidates tokens issued to other devices
	now := time.Now()
	user.TokenVersion = uuid.New().String()
	user.LastSeenAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to update session")
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.FullName, user.RoleCode(), user.GetPrivilegeCodes(), user.TokenVersion)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "failed to generate token")
	}

	return &LoginResponse{
		Token:      token,
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

func (s *authService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if err := validator.Validate(req); err != nil {
		return err
	}
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return apperr.Wrap(apperr.CodeNotFound, ErrUserNotFound, "User not found")
	}
	if !user.CheckPassword(req.OldPassword) {
		return apperr.Wrap(apperr.CodeUnauthorized, ErrWrongPassword, "Current password is incorrect")
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "failed to hash new password")
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, user.Password); err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "update password")
	}
	if err := s.userRepo.UpdateTokenVersion(ctx, user.ID, uuid.New().String()); err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "invalidate sessions")
	}
	return nil
}

// Authenticate checks the signature, then the live user row: active flag and token version.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*jwt.Claims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthorized, err, "Invalid or expired token")
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthorized, ErrUserNotFound, "User not found")
	}
	if !user.IsActive {
		return nil, apperr.Wrap(apperr.CodeUnauthorized, ErrUserInactive, "User account is inactive")
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, apperr.Wrap(apperr.CodeUnauthorized, ErrSessionReplaced, "Session expired (logged in on another device)")
	}
	// role and privileges come from the database, not the possibly stale token
	claims.RoleCode = user.RoleCode()
	claims.Privileges = user.GetPrivilegeCodes()
	return claims, nil
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*TokenValidationResponse, error) {
	claims, err := s.Authenticate(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthorized, ErrUserNotFound, "User not found")
	}
	return &TokenValidationResponse{
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

func (s *authService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.UpdateLastSeen(ctx, userID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "update last seen")
	}
	s.events.Publish(ctx, events.New(events.TypeUserStatus, userID.String(), map[string]any{
		"user_id":      userID.String(),
		"status":       "online",
		"last_seen_at": time.Now(),
	}))
	return nil
}
