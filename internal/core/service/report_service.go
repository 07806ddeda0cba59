package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/port"
)

type ReportService struct {
	store port.Store
}

func NewReportService(store port.Store) *ReportService {
	return &ReportService{store: store}
}

// RevenueReport summarizes non-cancelled orders in a window.
type RevenueReport struct {
	From    time.Time
	To      time.Time
	Revenue decimal.Decimal
	Orders  int
}

func (s *ReportService) Revenue(ctx context.Context, from, to time.Time) (*RevenueReport, error) {
	if !to.After(from) {
		return nil, domain.NewValidation("period", "end must be after start")
	}

	totals, err := s.store.RevenueBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &RevenueReport{From: from, To: to, Revenue: totals.Revenue, Orders: totals.Orders}, nil
}

// Statistics is the month-to-date dashboard summary.
type Statistics struct {
	MonthRevenue  decimal.Decimal
	MonthOrders   int
	MonthCosts    decimal.Decimal
	PendingOrders int
	LowStockItems int
}

func (s *ReportService) Statistics(ctx context.Context) (*Statistics, error) {
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	totals, err := s.store.RevenueBetween(ctx, monthStart, now)
	if err != nil {
		return nil, err
	}

	costs, err := s.store.SumCostsSince(ctx, monthStart)
	if err != nil {
		return nil, err
	}

	pending, err := s.store.CountOrdersByStatus(ctx, domain.OrderStatusPending)
	if err != nil {
		return nil, err
	}

	levels, err := s.store.InventoryLevels(ctx)
	if err != nil {
		return nil, err
	}
	lowStock := 0
	for _, l := range levels {
		if l.LowStock() {
			lowStock++
		}
	}

	return &Statistics{
		MonthRevenue:  totals.Revenue,
		MonthOrders:   totals.Orders,
		MonthCosts:    costs,
		PendingOrders: pending,
		LowStockItems: lowStock,
	}, nil
}
