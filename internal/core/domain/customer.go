package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentCash    PaymentType = "cash"
	PaymentMonthly PaymentType = "monthly"
)

type Customer struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Phone       string          `db:"phone"`
	Address     string          `db:"address"`
	PaymentType PaymentType     `db:"payment_type"`
	Balance     decimal.Decimal `db:"balance"`
	CreditLimit decimal.Decimal `db:"credit_limit"`
	GroupID     *string         `db:"group_id"`
	LastOrderAt *time.Time      `db:"last_order_at"`
	IsActive    bool            `db:"is_active"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// CustomerGroup carries a discount rate in [0, 1) applied to order subtotals.
type CustomerGroup struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Discount  decimal.Decimal `db:"discount"`
	CreatedAt time.Time       `db:"created_at"`
}

type CustomerGroupCreate struct {
	Name     string          `db:"name"`
	Discount decimal.Decimal `db:"discount"`
}

type CustomerCreate struct {
	Name        string      `db:"name"`
	Phone       string      `db:"phone"`
	Address     string      `db:"address"`
	PaymentType PaymentType `db:"payment_type"`
	GroupID     *string     `db:"group_id"`
}

type CustomerUpdate struct {
	Name        *string      `db:"name"`
	Phone       *string      `db:"phone"`
	Address     *string      `db:"address"`
	PaymentType *PaymentType `db:"payment_type"`
	GroupID     *string      `db:"group_id"`
	IsActive    *bool        `db:"is_active"`
}
