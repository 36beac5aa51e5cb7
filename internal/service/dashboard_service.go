package service

import (
	"context"
	"time"

	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"
)

// lowStockThreshold is the available quantity under which a scope counts as low.
const lowStockThreshold = 10

type DashboardService interface {
	GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error)
	GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error)
}

type dashboardService struct {
	movementRepo repository.MovementRepository
}

func NewDashboardService(movementRepo repository.MovementRepository) DashboardService {
	return &dashboardService{movementRepo: movementRepo}
}

func (s *dashboardService) GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error) {
	if days <= 0 || days > 365 {
		days = 7
	}
	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -days)

	data, err := s.movementRepo.GetStockMovement(ctx, startDate, endDate)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load stock movement")
	}
	return data, nil
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*repository.DashboardStats, error) {
	stats, err := s.movementRepo.GetDashboardStats(ctx, lowStockThreshold)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load dashboard stats")
	}
	return stats, nil
}
