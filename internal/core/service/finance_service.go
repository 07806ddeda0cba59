package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/port"
)

type FinanceService struct {
	store port.Store
	audit *AuditLogger
}

func NewFinanceService(store port.Store, audit *AuditLogger) *FinanceService {
	return &FinanceService{store: store, audit: audit}
}

// AddCost records one expense.
func (s *FinanceService) AddCost(ctx context.Context, input domain.CostRecordCreate) (*domain.CostRecord, error) {
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, domain.NewValidation("amount", "must be positive")
	}
	if input.Type == "" {
		return nil, domain.NewValidation("type", "required")
	}
	if input.Date.IsZero() {
		input.Date = time.Now()
	}

	record, err := s.store.CreateCostRecord(ctx, input)
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuditCreate, "cost_record", record.ID, nil, record)
	return record, nil
}

// AddCheck registers a received check as pending until it clears.
func (s *FinanceService) AddCheck(ctx context.Context, input domain.CheckCreate) (*domain.Check, error) {
	if input.CheckNo == "" {
		return nil, domain.NewValidation("check_no", "required")
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, domain.NewValidation("amount", "must be positive")
	}
	if input.Status == "" {
		input.Status = domain.CheckPending
	}
	if input.CheckDate.IsZero() {
		input.CheckDate = time.Now()
	}

	check, err := s.store.CreateCheck(ctx, input)
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuditCreate, "check", check.ID, nil, check)
	return check, nil
}
