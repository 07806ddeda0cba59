package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/port"
)

// NoUpdate is the update-input type for append-only entities.
type NoUpdate struct{}

// MySQLStore implements port.Store on MySQL. Each entity is served by one
// instance of the generic repository; the handful of queries the generic
// contract cannot express (locked reads, joins, aggregates) live here as
// hand SQL.
type MySQLStore struct {
	db  *sqlx.DB
	txm *TxManager

	customers  *Repository[domain.Customer, domain.CustomerCreate, domain.CustomerUpdate]
	groups     *Repository[domain.CustomerGroup, domain.CustomerGroupCreate, NoUpdate]
	products   *Repository[domain.Product, domain.ProductCreate, domain.ProductUpdate]
	inventories *Repository[domain.Inventory, domain.InventoryCreate, domain.InventoryUpdate]
	ledger     *Repository[domain.LedgerEntry, domain.LedgerEntryCreate, NoUpdate]
	orders     *Repository[domain.Order, domain.Order, NoUpdate]
	orderItems *Repository[domain.OrderItem, domain.OrderItemCreate, NoUpdate]
	costs      *Repository[domain.CostRecord, domain.CostRecordCreate, NoUpdate]
	checks     *Repository[domain.Check, domain.CheckCreate, NoUpdate]
}

func NewMySQLStore(db *sqlx.DB, log *logrus.Entry) *MySQLStore {
	return &MySQLStore{
		db:  db,
		txm: NewTxManager(db, log),

		customers:   NewRepository[domain.Customer, domain.CustomerCreate, domain.CustomerUpdate](db, "customers", "customer"),
		groups:      NewRepository[domain.CustomerGroup, domain.CustomerGroupCreate, NoUpdate](db, "customer_groups", "customer group"),
		products:    NewRepository[domain.Product, domain.ProductCreate, domain.ProductUpdate](db, "products", "product"),
		inventories: NewRepository[domain.Inventory, domain.InventoryCreate, domain.InventoryUpdate](db, "inventories", "inventory"),
		ledger:      NewRepository[domain.LedgerEntry, domain.LedgerEntryCreate, NoUpdate](db, "inventory_ledger", "ledger entry"),
		orders:      NewRepository[domain.Order, domain.Order, NoUpdate](db, "orders", "order"),
		orderItems:  NewRepository[domain.OrderItem, domain.OrderItemCreate, NoUpdate](db, "order_items", "order item"),
		costs:       NewRepository[domain.CostRecord, domain.CostRecordCreate, NoUpdate](db, "cost_records", "cost record"),
		checks:      NewRepository[domain.Check, domain.CheckCreate, NoUpdate](db, "checks", "check"),
	}
}

// Repository accessors for callers that only need the generic contract.

func (s *MySQLStore) Customers() *Repository[domain.Customer, domain.CustomerCreate, domain.CustomerUpdate] {
	return s.customers
}

func (s *MySQLStore) Groups() *Repository[domain.CustomerGroup, domain.CustomerGroupCreate, NoUpdate] {
	return s.groups
}

func (s *MySQLStore) Products() *Repository[domain.Product, domain.ProductCreate, domain.ProductUpdate] {
	return s.products
}

func (s *MySQLStore) Inventories() *Repository[domain.Inventory, domain.InventoryCreate, domain.InventoryUpdate] {
	return s.inventories
}

func (s *MySQLStore) TxManager() *TxManager { return s.txm }

// ---- port.Store ----

func (s *MySQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	return s.txm.WithinTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, &mysqlTx{store: s, tx: tx})
	})
}

func (s *MySQLStore) CustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	return s.customers.FindByID(ctx, id)
}

func (s *MySQLStore) CustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return s.customers.FindOne(ctx, Eq("phone", phone))
}

func (s *MySQLStore) FirstCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	return s.customers.FindOne(ctx, Contains("name", name))
}

func (s *MySQLStore) CustomerGroupByID(ctx context.Context, id string) (*domain.CustomerGroup, error) {
	return s.groups.FindByID(ctx, id)
}

func (s *MySQLStore) CreateCustomer(ctx context.Context, input domain.CustomerCreate) (*domain.Customer, error) {
	return s.customers.Create(ctx, input)
}

func (s *MySQLStore) OrderWithItems(ctx context.Context, orderID string) (*domain.Order, error) {
	return orderWithItems(ctx, s.db, orderID)
}

func (s *MySQLStore) FindOrders(ctx context.Context, filter port.OrderFilter) ([]domain.Order, error) {
	var conds []Condition
	if filter.CustomerID != "" {
		conds = append(conds, Eq("customer_id", filter.CustomerID))
	}
	if filter.OrderNo != "" {
		conds = append(conds, Contains("order_no", filter.OrderNo))
	}
	if filter.Status != "" {
		conds = append(conds, Eq("status", filter.Status))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}

	where, args, err := buildWhere(conds)
	if err != nil {
		return nil, err
	}
	orders := []domain.Order{}
	query := fmt.Sprintf("SELECT * FROM orders%s ORDER BY order_date DESC LIMIT %d", where, limit)
	if err := sqlx.SelectContext(ctx, s.db, &orders, query, args...); err != nil {
		return nil, domain.ClassifyStoreError("order", err)
	}
	return orders, nil
}

func (s *MySQLStore) InventoryLevels(ctx context.Context) ([]domain.InventoryLevel, error) {
	levels := []domain.InventoryLevel{}
	err := sqlx.SelectContext(ctx, s.db, &levels, `
		SELECT i.product_id, p.name AS product_name, p.capacity, i.quantity, i.min_stock
		FROM inventories i
		JOIN products p ON p.id = i.product_id
		ORDER BY p.name ASC`)
	if err != nil {
		return nil, domain.ClassifyStoreError("inventory", err)
	}
	return levels, nil
}

func (s *MySQLStore) LedgerEntries(ctx context.Context, productID string) ([]domain.LedgerEntry, error) {
	return s.ledger.FindMany(ctx, []Condition{Eq("product_id", productID)}, Ordering{Field: "created_at"})
}

func (s *MySQLStore) CreateCostRecord(ctx context.Context, input domain.CostRecordCreate) (*domain.CostRecord, error) {
	return s.costs.Create(ctx, input)
}

func (s *MySQLStore) CreateCheck(ctx context.Context, input domain.CheckCreate) (*domain.Check, error) {
	return s.checks.Create(ctx, input)
}

func (s *MySQLStore) InsertAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, username, action, entity_type, entity_id, old_values, new_values, metadata)
		VALUES (:id, :user_id, :username, :action, :entity_type, :entity_id, :old_values, :new_values, :metadata)`,
		entry)
	return domain.ClassifyStoreError("audit log", err)
}

// RevenueBetween sums order totals in [from, to); cancelled orders do not
// count toward revenue.
func (s *MySQLStore) RevenueBetween(ctx context.Context, from, to time.Time) (port.RevenueTotals, error) {
	var row struct {
		Revenue decimal.Decimal `db:"revenue"`
		Orders  int             `db:"orders"`
	}
	err := sqlx.GetContext(ctx, s.db, &row, `
		SELECT COALESCE(SUM(total), 0) AS revenue, COUNT(*) AS orders
		FROM orders
		WHERE status <> ? AND order_date >= ? AND order_date < ?`,
		domain.OrderStatusCancelled, from, to)
	if err != nil {
		return port.RevenueTotals{}, domain.ClassifyStoreError("order", err)
	}
	return port.RevenueTotals{Revenue: row.Revenue, Orders: row.Orders}, nil
}

func (s *MySQLStore) SumCostsSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := sqlx.GetContext(ctx, s.db, &sum,
		`SELECT COALESCE(SUM(amount), 0) FROM cost_records WHERE date >= ?`, since)
	if err != nil {
		return decimal.Zero, domain.ClassifyStoreError("cost record", err)
	}
	return sum, nil
}

func (s *MySQLStore) CountOrdersByStatus(ctx context.Context, status domain.OrderStatus) (int, error) {
	return s.orders.Count(ctx, Eq("status", status))
}

// ---- port.Tx ----

type mysqlTx struct {
	store *MySQLStore
	tx    *sqlx.Tx
}

func (t *mysqlTx) CustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	return t.store.customers.WithTx(t.tx).FindByID(ctx, id)
}

func (t *mysqlTx) FirstCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	return t.store.customers.WithTx(t.tx).FindOne(ctx, Contains("name", name))
}

func (t *mysqlTx) CustomerGroupByID(ctx context.Context, id string) (*domain.CustomerGroup, error) {
	return t.store.groups.WithTx(t.tx).FindByID(ctx, id)
}

func (t *mysqlTx) ProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return t.store.products.WithTx(t.tx).FindByID(ctx, id)
}

func (t *mysqlTx) FirstProductByCapacity(ctx context.Context, capacity string) (*domain.Product, error) {
	return t.store.products.WithTx(t.tx).FindOne(ctx, Eq("capacity", capacity), Eq("is_active", true))
}

// InventoryForUpdate locks the row until commit so the stock check and the
// decrement are one atomic read-modify-write under concurrent orders.
func (t *mysqlTx) InventoryForUpdate(ctx context.Context, productID string) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := t.tx.GetContext(ctx, &inv,
		`SELECT * FROM inventories WHERE product_id = ? FOR UPDATE`, productID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, domain.ClassifyStoreError("inventory", err)
	}
	return &inv, nil
}

func (t *mysqlTx) SetInventoryQuantity(ctx context.Context, inventoryID string, quantity int) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE inventories SET quantity = ? WHERE id = ?`, quantity, inventoryID)
	return domain.ClassifyStoreError("inventory", err)
}

func (t *mysqlTx) AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error {
	_, err := t.store.ledger.WithTx(t.tx).Create(ctx, domain.LedgerEntryCreate{
		ProductID:      entry.ProductID,
		Type:           entry.Type,
		Quantity:       entry.Quantity,
		QuantityBefore: entry.QuantityBefore,
		QuantityAfter:  entry.QuantityAfter,
		Reason:         entry.Reason,
	})
	return err
}

func (t *mysqlTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO orders (id, order_no, delivery_number, customer_id, status, order_date,
			delivery_date, completed_at, subtotal, discount, delivery_fee, total, paid_amount, note)
		VALUES (:id, :order_no, :delivery_number, :customer_id, :status, :order_date,
			:delivery_date, :completed_at, :subtotal, :discount, :delivery_fee, :total, :paid_amount, :note)`,
		order)
	return domain.ClassifyStoreError("order", err)
}

func (t *mysqlTx) InsertOrderItems(ctx context.Context, items []domain.OrderItem) (int64, error) {
	inputs := make([]domain.OrderItemCreate, len(items))
	for i, item := range items {
		inputs[i] = domain.OrderItemCreate{
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		}
	}
	return t.store.orderItems.WithTx(t.tx).CreateMany(ctx, inputs)
}

func (t *mysqlTx) TouchCustomerLastOrder(ctx context.Context, customerID string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE customers SET last_order_at = ? WHERE id = ?`, at, customerID)
	return domain.ClassifyStoreError("customer", err)
}

func (t *mysqlTx) AddCustomerBalance(ctx context.Context, customerID string, amount decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE customers SET balance = balance + ? WHERE id = ?`, amount, customerID)
	return domain.ClassifyStoreError("customer", err)
}

func (t *mysqlTx) CountOrdersSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := t.tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM orders WHERE order_date >= ?`, since)
	if err != nil {
		return 0, domain.ClassifyStoreError("order", err)
	}
	return count, nil
}

func (t *mysqlTx) OrderWithItems(ctx context.Context, orderID string) (*domain.Order, error) {
	return orderWithItems(ctx, t.tx, orderID)
}

func (t *mysqlTx) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, completedAt *time.Time) error {
	var err error
	if completedAt != nil {
		_, err = t.tx.ExecContext(ctx,
			`UPDATE orders SET status = ?, completed_at = ? WHERE id = ?`, status, completedAt, orderID)
	} else {
		_, err = t.tx.ExecContext(ctx,
			`UPDATE orders SET status = ? WHERE id = ?`, status, orderID)
	}
	return domain.ClassifyStoreError("order", err)
}

func orderWithItems(ctx context.Context, q sqlx.ExtContext, orderID string) (*domain.Order, error) {
	var order domain.Order
	err := sqlx.GetContext(ctx, q, &order, `SELECT * FROM orders WHERE id = ?`, orderID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, domain.ClassifyStoreError("order", err)
	}

	items := []domain.OrderItem{}
	err = sqlx.SelectContext(ctx, q, &items,
		`SELECT * FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, domain.ClassifyStoreError("order item", err)
	}
	order.Items = items
	return &order, nil
}
