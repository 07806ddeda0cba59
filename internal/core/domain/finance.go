package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CostRecord struct {
	ID          string          `db:"id"`
	Type        string          `db:"type"`
	Category    string          `db:"category"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	Date        time.Time       `db:"date"`
	RecordedBy  *string         `db:"recorded_by"`
	CreatedAt   time.Time       `db:"created_at"`
}

type CostRecordCreate struct {
	Type        string          `db:"type"`
	Category    string          `db:"category"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	Date        time.Time       `db:"date"`
	RecordedBy  *string         `db:"recorded_by"`
}

type CheckStatus string

const (
	CheckPending CheckStatus = "pending"
	CheckCleared CheckStatus = "cleared"
	CheckBounced CheckStatus = "bounced"
)

type Check struct {
	ID         string          `db:"id"`
	CheckNo    string          `db:"check_no"`
	BankName   string          `db:"bank_name"`
	Amount     decimal.Decimal `db:"amount"`
	CheckDate  time.Time       `db:"check_date"`
	CustomerID *string         `db:"customer_id"`
	OrderID    *string         `db:"order_id"`
	Status     CheckStatus     `db:"status"`
	CreatedAt  time.Time       `db:"created_at"`
}

type CheckCreate struct {
	CheckNo    string          `db:"check_no"`
	BankName   string          `db:"bank_name"`
	Amount     decimal.Decimal `db:"amount"`
	CheckDate  time.Time       `db:"check_date"`
	CustomerID *string         `db:"customer_id"`
	Status     CheckStatus     `db:"status"`
}
