package service

import (
	"context"

	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/port"
)

type CustomerService struct {
	store port.Store
	audit *AuditLogger
}

func NewCustomerService(store port.Store, audit *AuditLogger) *CustomerService {
	return &CustomerService{store: store, audit: audit}
}

// CreateCustomer registers a customer. Phone numbers are unique; a
// duplicate is a conflict, not a silent merge.
func (s *CustomerService) CreateCustomer(ctx context.Context, input domain.CustomerCreate) (*domain.Customer, error) {
	if input.Name == "" {
		return nil, domain.NewValidation("name", "required")
	}
	if input.Phone == "" {
		return nil, domain.NewValidation("phone", "required")
	}
	switch input.PaymentType {
	case domain.PaymentCash, domain.PaymentMonthly:
	case "":
		input.PaymentType = domain.PaymentCash
	default:
		return nil, domain.NewValidation("payment_type", "must be cash or monthly")
	}

	existing, err := s.store.CustomerByPhone(ctx, input.Phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.NewConflict("customer with phone %s already exists", input.Phone)
	}

	customer, err := s.store.CreateCustomer(ctx, input)
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuditCreate, "customer", customer.ID, nil, customer)
	return customer, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	customer, err := s.store.CustomerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.NewNotFound("customer", id)
	}
	return customer, nil
}

// FindCustomer resolves a customer by phone first, then by name fragment.
func (s *CustomerService) FindCustomer(ctx context.Context, query string) (*domain.Customer, error) {
	if query == "" {
		return nil, domain.NewValidation("query", "required")
	}

	customer, err := s.store.CustomerByPhone(ctx, query)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		customer, err = s.store.FirstCustomerByName(ctx, query)
		if err != nil {
			return nil, err
		}
	}
	if customer == nil {
		return nil, domain.NewNotFound("customer", query)
	}
	return customer, nil
}
