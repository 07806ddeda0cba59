package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// statusTransitions is the closed transition map. Completed and cancelled
// are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusDelivering, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusDelivering, OrderStatusCancelled},
	OrderStatusDelivering: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether an order may move from one status to next.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool { return len(statusTransitions[s]) == 0 }

type Order struct {
	ID             string          `db:"id"`
	OrderNo        string          `db:"order_no"`
	DeliveryNumber string          `db:"delivery_number"`
	CustomerID     string          `db:"customer_id"`
	Status         OrderStatus     `db:"status"`
	OrderDate      time.Time       `db:"order_date"`
	DeliveryDate   *time.Time      `db:"delivery_date"`
	CompletedAt    *time.Time      `db:"completed_at"`
	Subtotal       decimal.Decimal `db:"subtotal"`
	Discount       decimal.Decimal `db:"discount"`
	DeliveryFee    decimal.Decimal `db:"delivery_fee"`
	Total          decimal.Decimal `db:"total"`
	PaidAmount     decimal.Decimal `db:"paid_amount"`
	Note           string          `db:"note"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`

	Items []OrderItem `db:"-"`
}

// OrderItem copies the unit price at order time so later price changes
// never rewrite history.
type OrderItemCreate struct {
	OrderID   string          `db:"order_id"`
	ProductID string          `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal"`
}

type OrderItem struct {
	ID        string          `db:"id"`
	OrderID   string          `db:"order_id"`
	ProductID string          `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal"`
}
