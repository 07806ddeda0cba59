package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/port"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// memoryStore is an in-memory port.Store. WithinTx snapshots all state up
// front and restores it when fn fails, so rollback semantics match the real
// store.
type memoryStore struct {
	mu sync.Mutex

	customers   map[string]domain.Customer
	groups      map[string]domain.CustomerGroup
	products    map[string]domain.Product
	inventories map[string]domain.Inventory // keyed by product id
	ledger      []domain.LedgerEntry
	orders      map[string]domain.Order
	orderItems  map[string][]domain.OrderItem // keyed by order id
	costs       []domain.CostRecord
	checks      []domain.Check
	auditLogs   []domain.AuditLog

	nextID int

	// error injection; insertOrderErrs is consumed one call at a time
	insertOrderErrs     []error
	insertOrderItemsErr error
	insertAuditErr      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		customers:   map[string]domain.Customer{},
		groups:      map[string]domain.CustomerGroup{},
		products:    map[string]domain.Product{},
		inventories: map[string]domain.Inventory{},
		orders:      map[string]domain.Order{},
		orderItems:  map[string][]domain.OrderItem{},
	}
}

func (m *memoryStore) genID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// seed helpers, lock-free because tests seed before running the service.

func (m *memoryStore) seedGroup(id string, discount decimal.Decimal) {
	m.groups[id] = domain.CustomerGroup{ID: id, Name: id, Discount: discount}
}

func (m *memoryStore) seedCustomer(c domain.Customer) {
	if c.PaymentType == "" {
		c.PaymentType = domain.PaymentCash
	}
	c.IsActive = true
	m.customers[c.ID] = c
}

func (m *memoryStore) seedProduct(p domain.Product) {
	p.IsActive = true
	m.products[p.ID] = p
}

func (m *memoryStore) seedInventory(productID string, quantity, minStock int) {
	m.inventories[productID] = domain.Inventory{
		ID:        "inv-" + productID,
		ProductID: productID,
		Quantity:  quantity,
		MinStock:  minStock,
	}
}

type memorySnapshot struct {
	customers   map[string]domain.Customer
	inventories map[string]domain.Inventory
	ledger      []domain.LedgerEntry
	orders      map[string]domain.Order
	orderItems  map[string][]domain.OrderItem
}

func (m *memoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		customers:   make(map[string]domain.Customer, len(m.customers)),
		inventories: make(map[string]domain.Inventory, len(m.inventories)),
		ledger:      append([]domain.LedgerEntry(nil), m.ledger...),
		orders:      make(map[string]domain.Order, len(m.orders)),
		orderItems:  make(map[string][]domain.OrderItem, len(m.orderItems)),
	}
	for k, v := range m.customers {
		snap.customers[k] = v
	}
	for k, v := range m.inventories {
		snap.inventories[k] = v
	}
	for k, v := range m.orders {
		snap.orders[k] = v
	}
	for k, v := range m.orderItems {
		snap.orderItems[k] = append([]domain.OrderItem(nil), v...)
	}
	return snap
}

func (m *memoryStore) restore(snap memorySnapshot) {
	m.customers = snap.customers
	m.inventories = snap.inventories
	m.ledger = snap.ledger
	m.orders = snap.orders
	m.orderItems = snap.orderItems
}

func (m *memoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(ctx, &memoryTx{store: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memoryStore) CustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{store: m}).CustomerByID(ctx, id)
}

func (m *memoryStore) CustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Phone == phone {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) FirstCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{store: m}).FirstCustomerByName(ctx, name)
}

func (m *memoryStore) CustomerGroupByID(ctx context.Context, id string) (*domain.CustomerGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{store: m}).CustomerGroupByID(ctx, id)
}

func (m *memoryStore) CreateCustomer(ctx context.Context, input domain.CustomerCreate) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := domain.Customer{
		ID:          m.genID("cust"),
		Name:        input.Name,
		Phone:       input.Phone,
		Address:     input.Address,
		PaymentType: input.PaymentType,
		GroupID:     input.GroupID,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	m.customers[c.ID] = c
	return &c, nil
}

func (m *memoryStore) OrderWithItems(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{store: m}).OrderWithItems(ctx, orderID)
}

func (m *memoryStore) FindOrders(ctx context.Context, filter port.OrderFilter) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.OrderNo != "" && !strings.Contains(o.OrderNo, filter.OrderNo) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memoryStore) InventoryLevels(ctx context.Context) ([]domain.InventoryLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.InventoryLevel
	for pid, inv := range m.inventories {
		p := m.products[pid]
		out = append(out, domain.InventoryLevel{
			ProductID:   pid,
			ProductName: p.Name,
			Capacity:    p.Capacity,
			Quantity:    inv.Quantity,
			MinStock:    inv.MinStock,
		})
	}
	return out, nil
}

func (m *memoryStore) LedgerEntries(ctx context.Context, productID string) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.LedgerEntry
	for _, e := range m.ledger {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryStore) CreateCostRecord(ctx context.Context, input domain.CostRecordCreate) (*domain.CostRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := domain.CostRecord{
		ID:          m.genID("cost"),
		Type:        input.Type,
		Category:    input.Category,
		Amount:      input.Amount,
		Description: input.Description,
		Date:        input.Date,
		RecordedBy:  input.RecordedBy,
		CreatedAt:   time.Now(),
	}
	m.costs = append(m.costs, record)
	return &record, nil
}

func (m *memoryStore) CreateCheck(ctx context.Context, input domain.CheckCreate) (*domain.Check, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	check := domain.Check{
		ID:         m.genID("check"),
		CheckNo:    input.CheckNo,
		BankName:   input.BankName,
		Amount:     input.Amount,
		CheckDate:  input.CheckDate,
		CustomerID: input.CustomerID,
		Status:     input.Status,
		CreatedAt:  time.Now(),
	}
	m.checks = append(m.checks, check)
	return &check, nil
}

func (m *memoryStore) InsertAuditLog(ctx context.Context, entry domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertAuditErr != nil {
		return m.insertAuditErr
	}
	entry.CreatedAt = time.Now()
	m.auditLogs = append(m.auditLogs, entry)
	return nil
}

func (m *memoryStore) RevenueBetween(ctx context.Context, from, to time.Time) (port.RevenueTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals := port.RevenueTotals{Revenue: decimal.Zero}
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		if o.OrderDate.Before(from) || !o.OrderDate.Before(to) {
			continue
		}
		totals.Revenue = totals.Revenue.Add(o.Total)
		totals.Orders++
	}
	return totals, nil
}

func (m *memoryStore) SumCostsSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := decimal.Zero
	for _, c := range m.costs {
		if !c.Date.Before(since) {
			sum = sum.Add(c.Amount)
		}
	}
	return sum, nil
}

func (m *memoryStore) CountOrdersByStatus(ctx context.Context, status domain.OrderStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, o := range m.orders {
		if o.Status == status {
			count++
		}
	}
	return count, nil
}

// memoryTx serves port.Tx against the store's maps. The store mutex is
// already held by WithinTx.
type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) CustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	if c, ok := t.store.customers[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (t *memoryTx) FirstCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	for _, c := range t.store.customers {
		if strings.Contains(c.Name, name) {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) CustomerGroupByID(ctx context.Context, id string) (*domain.CustomerGroup, error) {
	if g, ok := t.store.groups[id]; ok {
		return &g, nil
	}
	return nil, nil
}

func (t *memoryTx) ProductByID(ctx context.Context, id string) (*domain.Product, error) {
	if p, ok := t.store.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (t *memoryTx) FirstProductByCapacity(ctx context.Context, capacity string) (*domain.Product, error) {
	for _, p := range t.store.products {
		if p.Capacity == capacity && p.IsActive {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) InventoryForUpdate(ctx context.Context, productID string) (*domain.Inventory, error) {
	if inv, ok := t.store.inventories[productID]; ok {
		return &inv, nil
	}
	return nil, nil
}

func (t *memoryTx) SetInventoryQuantity(ctx context.Context, inventoryID string, quantity int) error {
	for pid, inv := range t.store.inventories {
		if inv.ID == inventoryID {
			inv.Quantity = quantity
			t.store.inventories[pid] = inv
			return nil
		}
	}
	return domain.NewNotFound("inventory", inventoryID)
}

func (t *memoryTx) AppendLedgerEntry(ctx context.Context, entry domain.LedgerEntry) error {
	entry.ID = t.store.genID("ledger")
	entry.CreatedAt = time.Now()
	t.store.ledger = append(t.store.ledger, entry)
	return nil
}

func (t *memoryTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	if len(t.store.insertOrderErrs) > 0 {
		err := t.store.insertOrderErrs[0]
		t.store.insertOrderErrs = t.store.insertOrderErrs[1:]
		if err != nil {
			return err
		}
	}
	if order.ID == "" {
		order.ID = t.store.genID("order")
	}
	stored := *order
	stored.Items = nil
	t.store.orders[order.ID] = stored
	return nil
}

func (t *memoryTx) InsertOrderItems(ctx context.Context, items []domain.OrderItem) (int64, error) {
	if t.store.insertOrderItemsErr != nil {
		return 0, t.store.insertOrderItemsErr
	}
	for _, item := range items {
		item.ID = t.store.genID("item")
		t.store.orderItems[item.OrderID] = append(t.store.orderItems[item.OrderID], item)
	}
	return int64(len(items)), nil
}

func (t *memoryTx) TouchCustomerLastOrder(ctx context.Context, customerID string, at time.Time) error {
	c, ok := t.store.customers[customerID]
	if !ok {
		return domain.NewNotFound("customer", customerID)
	}
	c.LastOrderAt = &at
	t.store.customers[customerID] = c
	return nil
}

func (t *memoryTx) AddCustomerBalance(ctx context.Context, customerID string, amount decimal.Decimal) error {
	c, ok := t.store.customers[customerID]
	if !ok {
		return domain.NewNotFound("customer", customerID)
	}
	c.Balance = c.Balance.Add(amount)
	t.store.customers[customerID] = c
	return nil
}

func (t *memoryTx) CountOrdersSince(ctx context.Context, since time.Time) (int, error) {
	count := 0
	for _, o := range t.store.orders {
		if !o.OrderDate.Before(since) {
			count++
		}
	}
	return count, nil
}

func (t *memoryTx) OrderWithItems(ctx context.Context, orderID string) (*domain.Order, error) {
	o, ok := t.store.orders[orderID]
	if !ok {
		return nil, nil
	}
	o.Items = append([]domain.OrderItem(nil), t.store.orderItems[orderID]...)
	return &o, nil
}

func (t *memoryTx) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, completedAt *time.Time) error {
	o, ok := t.store.orders[orderID]
	if !ok {
		return domain.NewNotFound("order", orderID)
	}
	o.Status = status
	if completedAt != nil {
		o.CompletedAt = completedAt
	}
	t.store.orders[orderID] = o
	return nil
}

// memoryCache is an in-memory port.Cache.
type memoryCache struct {
	mu        sync.Mutex
	snapshots map[string]int
	claimed   map[string]bool
	setErr    error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{snapshots: map[string]int{}, claimed: map[string]bool{}}
}

func (c *memoryCache) SetStockSnapshot(ctx context.Context, productID string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.snapshots[productID] = quantity
	return nil
}

func (c *memoryCache) StockSnapshot(ctx context.Context, productID string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.snapshots[productID]
	return q, ok, nil
}

func (c *memoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed[key] {
		return false, nil
	}
	c.claimed[key] = true
	return true, nil
}
