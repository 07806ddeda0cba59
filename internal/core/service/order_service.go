package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/port"
)

// OrderConfig carries the pricing knobs for order creation.
type OrderConfig struct {
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
}

// OrderItemInput names a product either by id or by capacity spec ("20kg").
type OrderItemInput struct {
	ProductID string
	Capacity  string
	Quantity  int
}

// OrderCreateInput names the customer either by id or by a name fragment.
type OrderCreateInput struct {
	CustomerID   string
	CustomerName string
	Items        []OrderItemInput
	Note         string
}

type OrderService struct {
	store port.Store
	cache port.Cache
	audit *AuditLogger
	log   *logrus.Entry
	cfg   OrderConfig
}

func NewOrderService(store port.Store, cache port.Cache, audit *AuditLogger, log *logrus.Entry, cfg OrderConfig) *OrderService {
	return &OrderService{store: store, cache: cache, audit: audit, log: log, cfg: cfg}
}

// orderNoRetries bounds the re-runs of order creation after an order
// number collision.
const orderNoRetries = 3

// CreateOrder atomically creates the order, its items, the stock decrements
// and their ledger entries, and touches the customer's last-order timestamp.
// Any failure rolls the whole unit back, leaving no partial writes.
func (s *OrderService) CreateOrder(ctx context.Context, input OrderCreateInput) (*domain.Order, error) {
	if len(input.Items) == 0 {
		return nil, domain.NewValidation("items", "order requires at least one item")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, domain.NewValidation("quantity", "must be positive")
		}
		if item.ProductID == "" && item.Capacity == "" {
			return nil, domain.NewValidation("product", "product id or capacity required")
		}
	}

	// Order numbers carry a per-day sequence read under the inventory row
	// lock. Two transactions touching disjoint products share no lock and
	// can allocate the same sequence; the unique key rejects the loser, so
	// the whole unit is re-run with a fresh count.
	var order *domain.Order
	var snapshots map[string]int
	for attempt := 0; ; attempt++ {
		var err error
		order, snapshots, err = s.createOrderTx(ctx, input)
		if err == nil {
			break
		}
		var ce *domain.ConflictError
		if !errors.As(err, &ce) || attempt == orderNoRetries {
			return nil, err
		}
		s.log.WithError(err).WithField("attempt", attempt+1).Warn("order number collision, retrying")
	}

	s.audit.Record(domain.AuditCreate, "order", order.ID, nil, order)
	s.refreshSnapshots(ctx, snapshots)

	return order, nil
}

func (s *OrderService) createOrderTx(ctx context.Context, input OrderCreateInput) (*domain.Order, map[string]int, error) {
	var order *domain.Order
	snapshots := map[string]int{}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		customer, err := resolveCustomer(ctx, tx, input.CustomerID, input.CustomerName)
		if err != nil {
			return err
		}
		if !customer.IsActive {
			return domain.NewBusiness("customer %s is inactive", customer.Name)
		}

		groupRate := decimal.Zero
		if customer.GroupID != nil {
			group, err := tx.CustomerGroupByID(ctx, *customer.GroupID)
			if err != nil {
				return err
			}
			if group != nil {
				groupRate = group.Discount
			}
		}

		now := time.Now()
		subtotal := decimal.Zero
		items := make([]domain.OrderItem, 0, len(input.Items))
		type decrement struct {
			inventoryID string
			productID   string
			before      int
			after       int
		}
		decrements := make([]decrement, 0, len(input.Items))

		// onHand tracks in-tx quantities so a product appearing twice in one
		// order is checked against its already-planned decrements.
		onHand := map[string]int{}
		inventoryIDs := map[string]string{}

		for _, item := range input.Items {
			product, err := resolveProduct(ctx, tx, item.ProductID, item.Capacity)
			if err != nil {
				return err
			}

			available, seen := onHand[product.ID]
			if !seen {
				inv, err := tx.InventoryForUpdate(ctx, product.ID)
				if err != nil {
					return err
				}
				if inv == nil {
					return domain.NewNotFound("inventory", product.ID)
				}
				available = inv.Quantity
				inventoryIDs[product.ID] = inv.ID
			}

			if available < item.Quantity {
				return domain.NewBusiness("insufficient stock for %s: available: %d, requested: %d",
					product.Name, available, item.Quantity)
			}

			after := available - item.Quantity
			onHand[product.ID] = after
			decrements = append(decrements, decrement{
				inventoryID: inventoryIDs[product.ID],
				productID:   product.ID,
				before:      available,
				after:       after,
			})

			lineSubtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			subtotal = subtotal.Add(lineSubtotal)
			items = append(items, domain.OrderItem{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
				Subtotal:  lineSubtotal,
			})
		}

		pricing := domain.ComputePricing(subtotal, groupRate, s.cfg.FreeDeliveryThreshold, s.cfg.DeliveryFee)

		count, err := tx.CountOrdersSince(ctx, domain.DayStart(now))
		if err != nil {
			return err
		}
		seq := count + 1

		order = &domain.Order{
			OrderNo:        domain.FormatOrderNo(now, seq),
			DeliveryNumber: domain.FormatDeliveryNumber(now, seq),
			CustomerID:     customer.ID,
			Status:         domain.OrderStatusPending,
			OrderDate:      now,
			Subtotal:       pricing.Subtotal,
			Discount:       pricing.Discount,
			DeliveryFee:    pricing.DeliveryFee,
			Total:          pricing.Total,
			PaidAmount:     decimal.Zero,
			Note:           input.Note,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if _, err := tx.InsertOrderItems(ctx, items); err != nil {
			return err
		}
		order.Items = items

		for _, d := range decrements {
			if err := tx.SetInventoryQuantity(ctx, d.inventoryID, d.after); err != nil {
				return err
			}
			if err := tx.AppendLedgerEntry(ctx, domain.LedgerEntry{
				ProductID:      d.productID,
				Type:           domain.LedgerSale,
				Quantity:       -(d.before - d.after),
				QuantityBefore: d.before,
				QuantityAfter:  d.after,
				Reason:         "order " + order.OrderNo,
			}); err != nil {
				return err
			}
			snapshots[d.productID] = onHand[d.productID]
		}

		return tx.TouchCustomerLastOrder(ctx, customer.ID, now)
	})
	if err != nil {
		return nil, nil, err
	}
	return order, snapshots, nil
}

// UpdateOrderStatus moves an order along the status machine. Completing a
// monthly-billed order adds its total to the customer's balance; cancelling
// restores the decremented stock through compensating ledger entries.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	var before, after *domain.Order
	snapshots := map[string]int{}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		order, err := tx.OrderWithItems(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.NewNotFound("order", orderID)
		}
		before = order

		if !domain.CanTransition(order.Status, next) {
			return domain.NewBusiness("cannot transition order %s from %s to %s",
				order.OrderNo, order.Status, next)
		}

		var completedAt *time.Time
		switch next {
		case domain.OrderStatusCompleted:
			now := time.Now()
			completedAt = &now

			customer, err := tx.CustomerByID(ctx, order.CustomerID)
			if err != nil {
				return err
			}
			if customer != nil && customer.PaymentType == domain.PaymentMonthly {
				if err := tx.AddCustomerBalance(ctx, customer.ID, order.Total); err != nil {
					return err
				}
			}

		case domain.OrderStatusCancelled:
			if err := restoreStock(ctx, tx, order, snapshots); err != nil {
				return err
			}
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, next, completedAt); err != nil {
			return err
		}

		after, err = tx.OrderWithItems(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuditUpdate, "order", orderID, before, after)
	s.refreshSnapshots(ctx, snapshots)

	return after, nil
}

// CancelOrder cancels a non-terminal order and restores its stock.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.UpdateOrderStatus(ctx, orderID, domain.OrderStatusCancelled)
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.store.OrderWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.NewNotFound("order", orderID)
	}
	return order, nil
}

func (s *OrderService) FindOrders(ctx context.Context, filter port.OrderFilter) ([]domain.Order, error) {
	return s.store.FindOrders(ctx, filter)
}

// restoreStock reverses every decrement an order performed, one return entry
// per item.
func restoreStock(ctx context.Context, tx port.Tx, order *domain.Order, snapshots map[string]int) error {
	for _, item := range order.Items {
		inv, err := tx.InventoryForUpdate(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if inv == nil {
			return domain.NewNotFound("inventory", item.ProductID)
		}

		after := inv.Quantity + item.Quantity
		if err := tx.SetInventoryQuantity(ctx, inv.ID, after); err != nil {
			return err
		}
		if err := tx.AppendLedgerEntry(ctx, domain.LedgerEntry{
			ProductID:      item.ProductID,
			Type:           domain.LedgerReturn,
			Quantity:       item.Quantity,
			QuantityBefore: inv.Quantity,
			QuantityAfter:  after,
			Reason:         "order " + order.OrderNo + " cancelled",
		}); err != nil {
			return err
		}
		snapshots[item.ProductID] = after
	}
	return nil
}

func (s *OrderService) refreshSnapshots(ctx context.Context, snapshots map[string]int) {
	for productID, quantity := range snapshots {
		if err := s.cache.SetStockSnapshot(ctx, productID, quantity); err != nil {
			s.log.WithError(err).WithField("product_id", productID).Warn("stock snapshot refresh failed")
		}
	}
}

func resolveCustomer(ctx context.Context, tx port.Tx, id, name string) (*domain.Customer, error) {
	switch {
	case id != "":
		customer, err := tx.CustomerByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if customer == nil {
			return nil, domain.NewNotFound("customer", id)
		}
		return customer, nil
	case name != "":
		customer, err := tx.FirstCustomerByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if customer == nil {
			return nil, domain.NewNotFound("customer", name)
		}
		return customer, nil
	default:
		return nil, domain.NewValidation("customer", "customer id or name required")
	}
}

func resolveProduct(ctx context.Context, tx port.Tx, id, capacity string) (*domain.Product, error) {
	if id != "" {
		product, err := tx.ProductByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, domain.NewNotFound("product", id)
		}
		if !product.IsActive {
			return nil, domain.NewBusiness("product %s is inactive", product.Name)
		}
		return product, nil
	}

	product, err := tx.FirstProductByCapacity(ctx, capacity)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.NewNotFound("product", capacity)
	}
	return product, nil
}
