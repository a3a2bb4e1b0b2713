// Package stock is the aggregation query engine: every view here is a fold
// over committed ledger entries, computed on demand. Nothing in this package
// writes; these reads are for display and must never be the authority for a
// commit decision (the ledger refolds inside its own transaction).
package stock

import (
	"context"
	"fmt"
	"time"

	"drims-backend/internal/apperr"
	"drims-backend/internal/auth"
	"drims-backend/internal/models"

	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type ItemBalance struct {
	ItemID   uint   `json:"item_id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
	Quantity int64  `json:"quantity"`
}

type CategoryBalance struct {
	Category string `json:"category"`
	Quantity int64  `json:"quantity"`
}

type LowStockRow struct {
	ItemBalance
	Threshold int64 `json:"threshold"`
}

type ExpiringRow struct {
	DepotID    uint      `json:"depot_id"`
	DepotName  string    `json:"depot_name"`
	ItemID     uint      `json:"item_id"`
	ItemName   string    `json:"item_name"`
	ExpiryDate time.Time `json:"expiry_date"`
	Quantity   int64     `json:"quantity"`
}

// Balance returns the committed balance of one (depot, item) account,
// optionally as of a point in time.
func (s *Service) Balance(ctx context.Context, p auth.Principal, depotID, itemID uint, asOf *time.Time) (int64, error) {
	if err := s.checkDepotAccess(ctx, p, depotID); err != nil {
		return 0, err
	}
	return BalanceTx(s.db.WithContext(ctx), depotID, itemID, asOf)
}

// OverallBalances is the organization-wide ("ODPEM-wide") stock view. AGENCY
// depots never appear in it; an AGENCY principal gets their own depot's view
// instead.
func (s *Service) OverallBalances(ctx context.Context, p auth.Principal) ([]ItemBalance, error) {
	q, err := s.visibleEntries(ctx, p)
	if err != nil {
		return nil, err
	}

	var rows []ItemBalance
	err = q.
		Select("transactions.item_id, items.sku, items.name, items.category, items.unit, SUM(transactions.quantity) AS quantity").
		Joins("JOIN items ON items.id = transactions.item_id").
		Group("transactions.item_id, items.sku, items.name, items.category, items.unit").
		Order("items.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DepotBalances lists per-item balances for one depot.
func (s *Service) DepotBalances(ctx context.Context, p auth.Principal, depotID uint) ([]ItemBalance, error) {
	if err := s.checkDepotAccess(ctx, p, depotID); err != nil {
		return nil, err
	}

	var rows []ItemBalance
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("transactions.item_id, items.sku, items.name, items.category, items.unit, SUM(transactions.quantity) AS quantity").
		Joins("JOIN items ON items.id = transactions.item_id").
		Where("transactions.depot_id = ? AND transactions.status = ?", depotID, models.TxnCommitted).
		Group("transactions.item_id, items.sku, items.name, items.category, items.unit").
		Order("items.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BalancesByCategory folds the visible balances per item category.
func (s *Service) BalancesByCategory(ctx context.Context, p auth.Principal) ([]CategoryBalance, error) {
	q, err := s.visibleEntries(ctx, p)
	if err != nil {
		return nil, err
	}

	var rows []CategoryBalance
	err = q.
		Select("items.category, SUM(transactions.quantity) AS quantity").
		Joins("JOIN items ON items.id = transactions.item_id").
		Group("items.category").
		Order("items.category ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LowStock lists items whose visible balance is below the threshold. With a
// nil threshold each item's own MinQty applies (items with MinQty 0 are
// skipped); an explicit threshold applies to every item.
func (s *Service) LowStock(ctx context.Context, p auth.Principal, threshold *int64) ([]LowStockRow, error) {
	balances, err := s.OverallBalances(ctx, p)
	if err != nil {
		return nil, err
	}
	byItem := make(map[uint]int64, len(balances))
	for _, b := range balances {
		byItem[b.ItemID] = b.Quantity
	}

	var items []models.Item
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	low := make([]LowStockRow, 0)
	for _, it := range items {
		limit := it.MinQty
		if threshold != nil {
			limit = *threshold
		}
		if limit <= 0 {
			continue
		}
		qty := byItem[it.ID] // zero when the item has no entries
		if qty < limit {
			low = append(low, LowStockRow{
				ItemBalance: ItemBalance{
					ItemID:   it.ID,
					SKU:      it.SKU,
					Name:     it.Name,
					Category: it.Category,
					Unit:     it.Unit,
					Quantity: qty,
				},
				Threshold: limit,
			})
		}
	}
	return low, nil
}

// ExpiringWithin lists inbound lots whose expiry date falls inside the
// window, grouped by depot, item and expiry. Outbound entries are not
// lot-tracked, so this view reports what was received per expiry date.
func (s *Service) ExpiringWithin(ctx context.Context, p auth.Principal, window time.Duration) ([]ExpiringRow, error) {
	q, err := s.visibleEntries(ctx, p)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(window)

	var rows []ExpiringRow
	err = q.
		Select("transactions.depot_id, depots.name AS depot_name, transactions.item_id, items.name AS item_name, transactions.expiry_date, SUM(transactions.quantity) AS quantity").
		Joins("JOIN items ON items.id = transactions.item_id").
		Where("transactions.quantity > 0 AND transactions.expiry_date IS NOT NULL AND transactions.expiry_date <= ?", cutoff).
		Group("transactions.depot_id, depots.name, transactions.item_id, items.name, transactions.expiry_date").
		Order("transactions.expiry_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// visibleEntries returns the committed-entry query scoped by the
// visibility rule: AGENCY depots are excluded organization-wide, and an
// AGENCY principal only ever sees their own depot.
func (s *Service) visibleEntries(ctx context.Context, p auth.Principal) (*gorm.DB, error) {
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Joins("JOIN depots ON depots.id = transactions.depot_id").
		Where("transactions.status = ?", models.TxnCommitted)

	home, err := s.homeDepot(ctx, p)
	if err != nil {
		return nil, err
	}
	if home != nil && home.Tier == models.TierAgency {
		return q.Where("transactions.depot_id = ?", home.ID), nil
	}
	return q.Where("depots.tier <> ?", models.TierAgency), nil
}

// checkDepotAccess enforces depot-scoped visibility: an AGENCY principal may
// only query their own depot.
func (s *Service) checkDepotAccess(ctx context.Context, p auth.Principal, depotID uint) error {
	home, err := s.homeDepot(ctx, p)
	if err != nil {
		return err
	}
	if home != nil && home.Tier == models.TierAgency && home.ID != depotID {
		return fmt.Errorf("%w: agency staff may only view their own depot", apperr.ErrForbidden)
	}
	return nil
}

func (s *Service) homeDepot(ctx context.Context, p auth.Principal) (*models.Depot, error) {
	if p.DepotID == nil {
		return nil, nil
	}
	var depot models.Depot
	if err := s.db.WithContext(ctx).First(&depot, *p.DepotID).Error; err != nil {
		return nil, fmt.Errorf("%w: depot %d", apperr.ErrNotFound, *p.DepotID)
	}
	return &depot, nil
}
