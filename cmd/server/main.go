package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/adapter/handler"
	"github.com/jytian/gasops/internal/adapter/storage"
	"github.com/jytian/gasops/internal/config"
	"github.com/jytian/gasops/internal/core/service"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	log := logrus.NewEntry(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sqlx.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.WithError(err).Fatal("failed to open mysql")
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpen)
	db.SetMaxIdleConns(cfg.MySQLMaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("failed to ping mysql")
	}
	log.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: cfg.RedisPoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("failed to connect redis")
	}
	log.Info("connected to redis")

	// Adapters
	store := storage.NewMySQLStore(db, log)
	cache := storage.NewRedisAdapter(rdb)

	// Warm the stock snapshot cache from the database.
	levels, err := store.InventoryLevels(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to load inventory levels")
	}
	for _, l := range levels {
		if err := cache.SetStockSnapshot(ctx, l.ProductID, l.Quantity); err != nil {
			log.WithError(err).WithField("product_id", l.ProductID).Warn("snapshot warm-up failed")
		}
	}
	log.WithField("products", len(levels)).Info("stock snapshots warmed")

	// Services
	audit := service.NewAuditLogger(store, log, cfg.AuditQueueSize)
	orderCfg := service.OrderConfig{
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		DeliveryFee:           cfg.DeliveryFee,
	}
	orders := service.NewOrderService(store, cache, audit, log, orderCfg)
	customers := service.NewCustomerService(store, audit)
	inventory := service.NewInventoryService(store, cache, audit, log)
	finance := service.NewFinanceService(store, audit)
	reports := service.NewReportService(store)

	// HTTP
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := handler.NewMetrics(registry)

	dispatcher := handler.NewDispatcher(orders, customers, inventory, finance, reports, cache, log)
	httpHandler := handler.NewHTTPHandler(dispatcher, metrics, log)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Routes(registry),
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("http server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info("http server stopped")

	audit.Close()
	log.Info("audit queue drained")

	rdb.Close()
	db.Close()
	log.Info("connections closed")
}
