package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jytian/gasops/internal/core/domain"
	"github.com/jytian/gasops/internal/port"
)

type InventoryService struct {
	store port.Store
	cache port.Cache
	audit *AuditLogger
	log   *logrus.Entry
}

func NewInventoryService(store port.Store, cache port.Cache, audit *AuditLogger, log *logrus.Entry) *InventoryService {
	return &InventoryService{store: store, cache: cache, audit: audit, log: log}
}

// Restock adds purchased stock.
func (s *InventoryService) Restock(ctx context.Context, productID string, quantity int, reason string) (*domain.Inventory, error) {
	if quantity <= 0 {
		return nil, domain.NewValidation("quantity", "must be positive")
	}
	return s.applyDelta(ctx, productID, quantity, domain.LedgerPurchase, reason)
}

// ReportDamage removes damaged cylinders from stock.
func (s *InventoryService) ReportDamage(ctx context.Context, productID string, quantity int, reason string) (*domain.Inventory, error) {
	if quantity <= 0 {
		return nil, domain.NewValidation("quantity", "must be positive")
	}
	return s.applyDelta(ctx, productID, -quantity, domain.LedgerDamage, reason)
}

// ReportLoss removes lost cylinders from stock.
func (s *InventoryService) ReportLoss(ctx context.Context, productID string, quantity int, reason string) (*domain.Inventory, error) {
	if quantity <= 0 {
		return nil, domain.NewValidation("quantity", "must be positive")
	}
	return s.applyDelta(ctx, productID, -quantity, domain.LedgerLoss, reason)
}

// AdjustStock applies a signed manual correction. Adjustments require a
// reason so the ledger stays explainable.
func (s *InventoryService) AdjustStock(ctx context.Context, productID string, delta int, reason string) (*domain.Inventory, error) {
	if delta == 0 {
		return nil, domain.NewValidation("quantity", "adjustment must be non-zero")
	}
	if reason == "" {
		return nil, domain.NewValidation("reason", "adjustment requires a reason")
	}
	return s.applyDelta(ctx, productID, delta, domain.LedgerAdjustment, reason)
}

// applyDelta locks the inventory row, applies one signed change and appends
// the matching ledger entry. Stock never goes negative.
func (s *InventoryService) applyDelta(ctx context.Context, productID string, delta int, entryType domain.LedgerEntryType, reason string) (*domain.Inventory, error) {
	var result *domain.Inventory

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx port.Tx) error {
		inv, err := tx.InventoryForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if inv == nil {
			return domain.NewNotFound("inventory", productID)
		}

		after := inv.Quantity + delta
		if after < 0 {
			return domain.NewBusiness("insufficient stock for adjustment: available: %d, requested: %d",
				inv.Quantity, -delta)
		}

		if err := tx.SetInventoryQuantity(ctx, inv.ID, after); err != nil {
			return err
		}
		if err := tx.AppendLedgerEntry(ctx, domain.LedgerEntry{
			ProductID:      productID,
			Type:           entryType,
			Quantity:       delta,
			QuantityBefore: inv.Quantity,
			QuantityAfter:  after,
			Reason:         reason,
		}); err != nil {
			return err
		}

		updated := *inv
		updated.Quantity = after
		result = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(domain.AuditUpdate, "inventory", result.ID, nil, result)
	if err := s.cache.SetStockSnapshot(ctx, productID, result.Quantity); err != nil {
		s.log.WithError(err).WithField("product_id", productID).Warn("stock snapshot refresh failed")
	}

	return result, nil
}

func (s *InventoryService) Levels(ctx context.Context) ([]domain.InventoryLevel, error) {
	return s.store.InventoryLevels(ctx)
}

// LowStock lists products whose quantity fell under their minimum.
func (s *InventoryService) LowStock(ctx context.Context) ([]domain.InventoryLevel, error) {
	levels, err := s.store.InventoryLevels(ctx)
	if err != nil {
		return nil, err
	}

	low := levels[:0:0]
	for _, l := range levels {
		if l.LowStock() {
			low = append(low, l)
		}
	}
	return low, nil
}

func (s *InventoryService) Ledger(ctx context.Context, productID string) ([]domain.LedgerEntry, error) {
	return s.store.LedgerEntries(ctx, productID)
}

// VerifyLedger checks that the running sum of ledger deltas equals the
// current quantity for every product. Mismatches mean a write bypassed the
// ledger.
func (s *InventoryService) VerifyLedger(ctx context.Context) ([]LedgerMismatch, error) {
	levels, err := s.store.InventoryLevels(ctx)
	if err != nil {
		return nil, err
	}

	var mismatches []LedgerMismatch
	for _, level := range levels {
		entries, err := s.store.LedgerEntries(ctx, level.ProductID)
		if err != nil {
			return nil, err
		}

		sum := 0
		for _, e := range entries {
			sum += e.Quantity
		}
		if sum != level.Quantity {
			mismatches = append(mismatches, LedgerMismatch{
				ProductID: level.ProductID,
				Quantity:  level.Quantity,
				LedgerSum: sum,
			})
		}
	}
	return mismatches, nil
}

// LedgerMismatch reports one product whose quantity diverged from its
// ledger.
type LedgerMismatch struct {
	ProductID string
	Quantity  int
	LedgerSum int
}
