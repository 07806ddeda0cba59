package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Capacity  string          `db:"capacity"` // e.g. "20kg"
	Price     decimal.Decimal `db:"price"`
	Cost      decimal.Decimal `db:"cost"`
	IsActive  bool            `db:"is_active"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

type ProductCreate struct {
	Name     string          `db:"name"`
	Capacity string          `db:"capacity"`
	Price    decimal.Decimal `db:"price"`
	Cost     decimal.Decimal `db:"cost"`
}

type ProductUpdate struct {
	Name     *string          `db:"name"`
	Capacity *string          `db:"capacity"`
	Price    *decimal.Decimal `db:"price"`
	Cost     *decimal.Decimal `db:"cost"`
	IsActive *bool            `db:"is_active"`
}
