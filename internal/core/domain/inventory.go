package domain

import "time"

// Inventory is the current-quantity projection for one product. The quantity
// must always equal the running sum of ledger deltas for that product and
// must never go negative.
type Inventory struct {
	ID        string    `db:"id"`
	ProductID string    `db:"product_id"`
	Quantity  int       `db:"quantity"`
	MinStock  int       `db:"min_stock"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type LedgerEntryType string

const (
	LedgerPurchase   LedgerEntryType = "purchase"
	LedgerSale       LedgerEntryType = "sale"
	LedgerReturn     LedgerEntryType = "return"
	LedgerAdjustment LedgerEntryType = "adjustment"
	LedgerDamage     LedgerEntryType = "damage"
	LedgerLoss       LedgerEntryType = "loss"
)

// LedgerEntry is an append-only record of one signed quantity change.
// Entries are never updated or deleted.
type LedgerEntry struct {
	ID             string          `db:"id"`
	ProductID      string          `db:"product_id"`
	Type           LedgerEntryType `db:"type"`
	Quantity       int             `db:"quantity"` // signed delta
	QuantityBefore int             `db:"quantity_before"`
	QuantityAfter  int             `db:"quantity_after"`
	Reason         string          `db:"reason"`
	CreatedAt      time.Time       `db:"created_at"`
}

type InventoryCreate struct {
	ProductID string `db:"product_id"`
	Quantity  int    `db:"quantity"`
	MinStock  int    `db:"min_stock"`
}

type InventoryUpdate struct {
	Quantity *int `db:"quantity"`
	MinStock *int `db:"min_stock"`
}

type LedgerEntryCreate struct {
	ProductID      string          `db:"product_id"`
	Type           LedgerEntryType `db:"type"`
	Quantity       int             `db:"quantity"`
	QuantityBefore int             `db:"quantity_before"`
	QuantityAfter  int             `db:"quantity_after"`
	Reason         string          `db:"reason"`
}

// InventoryLevel is the read model for stock reporting.
type InventoryLevel struct {
	ProductID   string `db:"product_id"`
	ProductName string `db:"product_name"`
	Capacity    string `db:"capacity"`
	Quantity    int    `db:"quantity"`
	MinStock    int    `db:"min_stock"`
}

func (l InventoryLevel) LowStock() bool { return l.Quantity < l.MinStock }
