package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// ParseCommissionRate parses a percentage such as "5" or "7.5".
func ParseCommissionRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid commission rate %q: %w", s, err)
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("commission rate %s out of range", rate)
	}
	return rate, nil
}

// CommissionFor returns total * rate / 100 rounded half away from zero to whole units.
func CommissionFor(total int64, ratePercent decimal.Decimal) int64 {
	return decimal.NewFromInt(total).Mul(ratePercent).Div(hundred).Round(0).IntPart()
}

type CommissionService interface {
	Summary(ctx context.Context, employeeID uuid.UUID) (*CommissionSummary, error)
	MarkPaid(ctx context.Context, employeeID uuid.UUID, actor Actor) (*CommissionPayout, error)
}

type CommissionSummary struct {
	EmployeeID  uuid.UUID                   `json:"employee_id"`
	Name        string                      `json:"name"`
	Role        string                      `json:"role"`
	RatePercent string                      `json:"rate_percent"`
	LastPaidAt  *time.Time                  `json:"last_paid_at,omitempty"`
	Unpaid      repository.CommissionTotals `json:"unpaid"`
	Lifetime    repository.CommissionTotals `json:"lifetime"`
}

type CommissionPayout struct {
	EmployeeID uuid.UUID `json:"employee_id"`
	PaidAt     time.Time `json:"paid_at"`
	Amount     int64     `json:"amount"`
	Orders     int64     `json:"orders"`
}

type commissionService struct {
	userRepo  repository.UserRepository
	orderRepo repository.OrderRepository
	rate      decimal.Decimal
	events    events.Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewCommissionService(userRepo repository.UserRepository, orderRepo repository.OrderRepository, rate decimal.Decimal, publisher events.Publisher, log *logger.Logger) CommissionService {
	if publisher == nil {
		publisher = events.Discard
	}
	if log == nil {
		log = logger.Nop()
	}
	return &commissionService{
		userRepo:  userRepo,
		orderRepo: orderRepo,
		rate:      rate,
		events:    publisher,
		log:       log,
		now:       time.Now,
	}
}

func (s *commissionService) employee(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeNotFound, "Employee not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load employee")
	}
	return user, nil
}

// Summary scopes "unpaid" to completed POS sales created after the last payout.
func (s *commissionService) Summary(ctx context.Context, employeeID uuid.UUID) (*CommissionSummary, error) {
	user, err := s.employee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	unpaid, err := s.orderRepo.SumCommission(ctx, user.ID, user.LastCommissionPaidAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "sum unpaid commission")
	}
	lifetime, err := s.orderRepo.SumCommission(ctx, user.ID, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "sum lifetime commission")
	}
	return &CommissionSummary{
		EmployeeID:  user.ID,
		Name:        user.FullName,
		Role:        user.RoleCode(),
		RatePercent: s.rate.String(),
		LastPaidAt:  user.LastCommissionPaidAt,
		Unpaid:      *unpaid,
		Lifetime:    *lifetime,
	}, nil
}

// MarkPaid moves the payout boundary past every order counted as unpaid.
// The new boundary is strictly later than both the newest counted order and the previous boundary.
func (s *commissionService) MarkPaid(ctx context.Context, employeeID uuid.UUID, actor Actor) (*CommissionPayout, error) {
	user, err := s.employee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	since := user.LastCommissionPaidAt

	unpaid, err := s.orderRepo.SumCommission(ctx, user.ID, since)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "sum unpaid commission")
	}
	latest, err := s.orderRepo.LatestCommissionAt(ctx, user.ID, since)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load latest commission order")
	}

	// postgres keeps microseconds
	paidAt := s.now().UTC().Truncate(time.Microsecond)
	if latest != nil && !paidAt.After(*latest) {
		paidAt = latest.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	if since != nil && !paidAt.After(*since) {
		paidAt = since.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}

	if err := s.userRepo.UpdateCommissionPaidAt(ctx, user.ID, paidAt); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "mark commission paid")
	}

	payout := &CommissionPayout{EmployeeID: user.ID, PaidAt: paidAt, Amount: unpaid.Commission, Orders: unpaid.Orders}
	s.events.Publish(ctx, events.New(events.TypeCommissionPaid, user.ID.String(), payout))
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"employee_id": user.ID.String(),
		"amount":      unpaid.Commission,
		"paid_by":     actor.Email,
	}), "commission marked paid")
	return payout, nil
}
