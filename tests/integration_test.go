package tests

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/adapter/storage"
	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/core/service"
)

type testEnv struct {
	mysql   *sqlx.DB
	redis   *redis.Client
	store   *storage.MySQLStore
	cache   *storage.RedisAdapter
	audit   *service.AuditLogger
	orders  *service.OrderService
	cleanup func()

	customerID string
	productID  string
}

func setupTestEnv(t *testing.T, initialStock int) *testEnv {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/gasops?parseTime=true"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	db, err := sqlx.Connect("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		db.Close()
		t.Skipf("Redis not available: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	store := storage.NewMySQLStore(db, log)
	cache := storage.NewRedisAdapter(rdb)
	audit := service.NewAuditLogger(store, log, 256)

	cfg := service.OrderConfig{
		FreeDeliveryThreshold: decimal.NewFromInt(2000),
		DeliveryFee:           decimal.NewFromInt(50),
	}
	orders := service.NewOrderService(store, cache, audit, log, cfg)

	ctx := context.Background()

	// Seed one customer and one product with stock.
	customer, err := store.Customers().Create(ctx, domain.CustomerCreate{
		Name:        "itest-customer-" + uuid.NewString()[:8],
		Phone:       "19" + uuid.NewString()[:9],
		PaymentType: domain.PaymentCash,
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	product, err := store.Products().Create(ctx, domain.ProductCreate{
		Name:     "itest-product-" + uuid.NewString()[:8],
		Capacity: "20kg",
		Price:    decimal.NewFromInt(620),
		Cost:     decimal.NewFromInt(450),
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	if _, err := store.Inventories().Create(ctx, domain.InventoryCreate{
		ProductID: product.ID,
		Quantity:  initialStock,
	}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	env := &testEnv{
		mysql:      db,
		redis:      rdb,
		store:      store,
		cache:      cache,
		audit:      audit,
		orders:     orders,
		customerID: customer.ID,
		productID:  product.ID,
	}
	env.cleanup = func() {
		audit.Close()
		db.ExecContext(ctx, `DELETE FROM inventory_ledger WHERE product_id = ?`, product.ID)
		db.ExecContext(ctx, `DELETE FROM order_items WHERE product_id = ?`, product.ID)
		db.ExecContext(ctx, `DELETE FROM orders WHERE customer_id = ?`, customer.ID)
		db.ExecContext(ctx, `DELETE FROM inventories WHERE product_id = ?`, product.ID)
		db.ExecContext(ctx, `DELETE FROM audit_logs WHERE entity_type = 'order'`)
		db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, product.ID)
		db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, customer.ID)
		rdb.Del(ctx, "stock:"+product.ID)
		rdb.Close()
		db.Close()
	}
	return env
}

func TestIntegration_OrderLifecycle(t *testing.T) {
	env := setupTestEnv(t, 5)
	defer env.cleanup()
	ctx := context.Background()

	order, err := env.orders.CreateOrder(ctx, service.OrderCreateInput{
		CustomerID: env.customerID,
		Items:      []service.OrderItemInput{{ProductID: env.productID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// 620*2 = 1240, no group, below threshold: 1240 + 50 = 1290.
	if !order.Total.Equal(decimal.NewFromInt(1290)) {
		t.Errorf("expected total 1290, got %s", order.Total)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending, got %s", order.Status)
	}

	// Stock decremented with a matching ledger entry.
	var quantity int
	env.mysql.QueryRowContext(ctx,
		`SELECT quantity FROM inventories WHERE product_id = ?`, env.productID).Scan(&quantity)
	if quantity != 3 {
		t.Errorf("expected stock 3, got %d", quantity)
	}

	entries, err := env.store.LedgerEntries(ctx, env.productID)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].Quantity != -2 {
		t.Errorf("expected one -2 ledger entry, got %+v", entries)
	}

	// Snapshot cache refreshed after commit.
	cached, ok, err := env.cache.StockSnapshot(ctx, env.productID)
	if err != nil || !ok || cached != 3 {
		t.Errorf("expected snapshot 3, got %d (ok=%v, err=%v)", cached, ok, err)
	}

	// Walk the status machine to completion.
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusDelivering,
		domain.OrderStatusCompleted,
	} {
		if _, err := env.orders.UpdateOrderStatus(ctx, order.ID, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	final, err := env.orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if final.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestIntegration_CancelRestoresStock(t *testing.T) {
	env := setupTestEnv(t, 5)
	defer env.cleanup()
	ctx := context.Background()

	order, err := env.orders.CreateOrder(ctx, service.OrderCreateInput{
		CustomerID: env.customerID,
		Items:      []service.OrderItemInput{{ProductID: env.productID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := env.orders.CancelOrder(ctx, order.ID); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	var quantity int
	env.mysql.QueryRowContext(ctx,
		`SELECT quantity FROM inventories WHERE product_id = ?`, env.productID).Scan(&quantity)
	if quantity != 5 {
		t.Errorf("expected stock restored to 5, got %d", quantity)
	}

	// Sale then return, and the ledger still sums to the projection.
	entries, _ := env.store.LedgerEntries(ctx, env.productID)
	sum := 0
	for _, e := range entries {
		sum += e.Quantity
	}
	if len(entries) != 2 || sum != 0 {
		t.Errorf("expected sale+return summing to 0, got %+v", entries)
	}
}

func TestIntegration_ConcurrentOrdersNeverOversell(t *testing.T) {
	const stock = 10
	const requests = 25

	env := setupTestEnv(t, stock)
	defer env.cleanup()
	ctx := context.Background()

	var succeeded atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.orders.CreateOrder(ctx, service.OrderCreateInput{
				CustomerID: env.customerID,
				Items:      []service.OrderItemInput{{ProductID: env.productID, Quantity: 1}},
			})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	if succeeded.Load() != stock {
		t.Errorf("expected %d successful orders, got %d", stock, succeeded.Load())
	}

	var quantity int
	env.mysql.QueryRowContext(ctx,
		`SELECT quantity FROM inventories WHERE product_id = ?`, env.productID).Scan(&quantity)
	if quantity != 0 {
		t.Errorf("expected stock 0, got %d", quantity)
	}

	// Ledger deltas sum to the net change.
	entries, _ := env.store.LedgerEntries(ctx, env.productID)
	sum := 0
	for _, e := range entries {
		sum += e.Quantity
	}
	if sum != -stock {
		t.Errorf("expected ledger sum %d, got %d", -stock, sum)
	}
}

func TestIntegration_InsufficientStockLeavesNoTrace(t *testing.T) {
	env := setupTestEnv(t, 1)
	defer env.cleanup()
	ctx := context.Background()

	_, err := env.orders.CreateOrder(ctx, service.OrderCreateInput{
		CustomerID: env.customerID,
		Items:      []service.OrderItemInput{{ProductID: env.productID, Quantity: 2}},
	})
	var be *domain.BusinessError
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if !errors.As(err, &be) {
		t.Fatalf("expected BusinessError, got %v", err)
	}

	var orderCount int
	env.mysql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE customer_id = ?`, env.customerID).Scan(&orderCount)
	if orderCount != 0 {
		t.Errorf("expected no orders, got %d", orderCount)
	}

	var quantity int
	env.mysql.QueryRowContext(ctx,
		`SELECT quantity FROM inventories WHERE product_id = ?`, env.productID).Scan(&quantity)
	if quantity != 1 {
		t.Errorf("expected stock unchanged at 1, got %d", quantity)
	}

	entries, _ := env.store.LedgerEntries(ctx, env.productID)
	if len(entries) != 0 {
		t.Errorf("expected empty ledger, got %+v", entries)
	}
}
