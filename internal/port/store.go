package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jytian/gasops/internal/core/domain"
)

// Tx is the transaction-scoped view of the store. Every method runs inside
// the surrounding unit of work; lookups return nil on miss.
type Tx interface {
	CustomerByID(ctx context.Context, id string) (*domain.Customer, error)

	// FirstCustomerByName fuzzy-matches on a name fragment.
	FirstCustomerByName(ctx context.Context, name string) (*domain.Customer, error)

	CustomerGroupByID(ctx context.Context, id string) (*domain.CustomerGroup, error)

	ProductByID(ctx context.Context, id string) (*domain.Product, error)

	// FirstProductByCapacity resolves a product by its spec string, e.g. "20kg".
	FirstProductByCapacity(ctx context.Context, capacity string) (*domain.Product, error)

	// InventoryForUpdate reads the inventory row under a row lock held until
	// the transaction commits, so the stock check and the decrement are one
	// atomic read-modify-write.
	InventoryForUpdate(ctx context.Context, productID string) (*domain.Inventory, error)

	SetInventoryQuantity(ctx context.Context, inventoryID string, quantity int) error

	// AppendLedgerEntry records one signed stock delta. Entries are never
	// updated or deleted.
	AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error

	InsertOrder(ctx context.Context, order *domain.Order) error

	InsertOrderItems(ctx context.Context, items []domain.OrderItem) (int64, error)

	TouchCustomerLastOrder(ctx context.Context, customerID string, at time.Time) error

	AddCustomerBalance(ctx context.Context, customerID string, amount decimal.Decimal) error

	// CountOrdersSince feeds the daily order/delivery number sequences.
	CountOrdersSince(ctx context.Context, since time.Time) (int, error)

	OrderWithItems(ctx context.Context, orderID string) (*domain.Order, error)

	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, completedAt *time.Time) error
}

// OrderFilter narrows order lookups; zero fields are ignored.
type OrderFilter struct {
	CustomerID string
	OrderNo    string // substring match
	Status     domain.OrderStatus
	Limit      int
}

// RevenueTotals aggregates non-cancelled orders in a window.
type RevenueTotals struct {
	Revenue decimal.Decimal
	Orders  int
}

// Store is the sanctioned write path to the persisted entities.
type Store interface {
	// WithinTx runs fn as one atomic unit of work; any error rolls back
	// every write performed inside fn.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	CustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	FirstCustomerByName(ctx context.Context, name string) (*domain.Customer, error)
	CustomerGroupByID(ctx context.Context, id string) (*domain.CustomerGroup, error)
	CreateCustomer(ctx context.Context, input domain.CustomerCreate) (*domain.Customer, error)

	OrderWithItems(ctx context.Context, orderID string) (*domain.Order, error)
	FindOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error)

	InventoryLevels(ctx context.Context) ([]domain.InventoryLevel, error)
	LedgerEntries(ctx context.Context, productID string) ([]domain.LedgerEntry, error)

	CreateCostRecord(ctx context.Context, input domain.CostRecordCreate) (*domain.CostRecord, error)
	CreateCheck(ctx context.Context, input domain.CheckCreate) (*domain.Check, error)
	InsertAuditLog(ctx context.Context, entry domain.AuditLog) error

	RevenueBetween(ctx context.Context, from, to time.Time) (RevenueTotals, error)
	SumCostsSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	CountOrdersByStatus(ctx context.Context, status domain.OrderStatus) (int, error)
}
