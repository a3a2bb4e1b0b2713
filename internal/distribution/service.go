// Package distribution implements the distribution-package workflow: a
// multi-depot fulfilment plan for an approved needs list, planned by the
// smart-allocation step, approved by a logistics manager, and committed to
// the ledger at dispatch after re-validating every allocation.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"drims-backend/internal/apperr"
	"drims-backend/internal/auth"
	"drims-backend/internal/ledger"
	"drims-backend/internal/models"
	"drims-backend/internal/stock"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	ledger *ledger.Service
	log    zerolog.Logger

	// Ranker orders candidate source depots for one requested line. The
	// default prefers depots that can cover the line alone, then MAIN over
	// SUB, then the lower depot id. It is policy, not a hard rule.
	Ranker func(a, b Candidate) bool
}

func NewService(db *gorm.DB, lgr *ledger.Service, log zerolog.Logger) *Service {
	return &Service{db: db, ledger: lgr, log: log, Ranker: defaultRanker}
}

// Candidate is a potential source depot for one requested line.
type Candidate struct {
	DepotID    uint
	Tier       models.HubTier
	Balance    int64
	Sufficient bool // balance alone covers the remaining need
}

func defaultRanker(a, b Candidate) bool {
	if a.Sufficient != b.Sufficient {
		return a.Sufficient
	}
	if a.Tier != b.Tier {
		return a.Tier == models.TierMain
	}
	return a.DepotID < b.DepotID
}

// Create plans a DRAFT package for an approved needs list. Candidate balances
// are validated live at creation time; nothing is written to the ledger.
func (s *Service) Create(ctx context.Context, p auth.Principal, needsListID uint) (*models.DistributionPackage, error) {
	if err := s.guardOfficer(p); err != nil {
		return nil, err
	}

	var list models.NeedsList
	if err := s.db.WithContext(ctx).Preload("Items").First(&list, needsListID).Error; err != nil {
		return nil, fmt.Errorf("%w: needs list %d", apperr.ErrNotFound, needsListID)
	}
	if list.Status != models.NeedsListApproved {
		return nil, &apperr.InvalidStateError{Entity: "needs_list", ID: needsListID, Current: string(list.Status), Attempted: "plan distribution"}
	}

	// Source candidates are MAIN and SUB depots other than the requester;
	// AGENCY stock is never drawn on for distribution.
	var depots []models.Depot
	if err := s.db.WithContext(ctx).
		Where("tier IN ? AND id <> ?", []models.HubTier{models.TierMain, models.TierSub}, list.DepotID).
		Find(&depots).Error; err != nil {
		return nil, err
	}

	pkg := models.DistributionPackage{
		NeedsListID: needsListID,
		Status:      models.PackageDraft,
		CreatedByID: p.UserID,
	}
	for _, line := range list.Items {
		if line.ApprovedQty <= 0 {
			continue
		}
		allocs, err := s.planLine(ctx, depots, line.ItemID, line.ApprovedQty)
		if err != nil {
			return nil, err
		}
		for _, a := range allocs {
			pkg.Allocations = append(pkg.Allocations, models.DistributionAllocation{
				SourceDepotID: a.SourceDepotID,
				ItemID:        a.ItemID,
				Quantity:      a.Quantity,
			})
		}
	}
	if len(pkg.Allocations) == 0 {
		return nil, fmt.Errorf("%w: needs list %d has nothing to allocate", apperr.ErrValidation, needsListID)
	}

	if err := s.db.WithContext(ctx).Create(&pkg).Error; err != nil {
		return nil, err
	}
	s.log.Info().Uint("package_id", pkg.ID).Uint("list_id", needsListID).Int("allocations", len(pkg.Allocations)).Msg("distribution package planned")
	return s.load(ctx, pkg.ID)
}

type plannedAllocation struct {
	SourceDepotID uint
	ItemID        uint
	Quantity      int64
}

// planLine greedily covers one requested line from the ranked candidates.
func (s *Service) planLine(ctx context.Context, depots []models.Depot, itemID uint, need int64) ([]plannedAllocation, error) {
	candidates := make([]Candidate, 0, len(depots))
	for _, d := range depots {
		bal, err := stock.BalanceTx(s.db.WithContext(ctx), d.ID, itemID, nil)
		if err != nil {
			return nil, err
		}
		if bal <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			DepotID:    d.ID,
			Tier:       d.Tier,
			Balance:    bal,
			Sufficient: bal >= need,
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return s.Ranker(candidates[i], candidates[j]) })

	var allocs []plannedAllocation
	remaining := need
	for _, c := range candidates {
		if remaining == 0 {
			break
		}
		take := c.Balance
		if take > remaining {
			take = remaining
		}
		allocs = append(allocs, plannedAllocation{SourceDepotID: c.DepotID, ItemID: itemID, Quantity: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil, &apperr.InsufficientStockError{ItemID: itemID, Available: need - remaining, Requested: need}
	}
	return allocs, nil
}

// SubmitForReview moves DRAFT -> UNDER_REVIEW.
func (s *Service) SubmitForReview(ctx context.Context, p auth.Principal, packageID uint) (*models.DistributionPackage, error) {
	if err := s.guardOfficer(p); err != nil {
		return nil, err
	}
	if err := s.claim(ctx, packageID, models.PackageDraft, map[string]any{"status": models.PackageUnderReview}, "submit for review"); err != nil {
		return nil, err
	}
	return s.load(ctx, packageID)
}

// Approve moves UNDER_REVIEW -> APPROVED. Manager only.
func (s *Service) Approve(ctx context.Context, p auth.Principal, packageID uint) (*models.DistributionPackage, error) {
	if err := s.guardManager(p); err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.claim(ctx, packageID, models.PackageUnderReview, map[string]any{
		"status": models.PackageApproved, "decided_by_id": p.UserID, "decided_at": now,
	}, "approve"); err != nil {
		return nil, err
	}
	return s.load(ctx, packageID)
}

// Reject moves UNDER_REVIEW -> REJECTED. Manager only.
func (s *Service) Reject(ctx context.Context, p auth.Principal, packageID uint, reason string) (*models.DistributionPackage, error) {
	if err := s.guardManager(p); err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.claim(ctx, packageID, models.PackageUnderReview, map[string]any{
		"status": models.PackageRejected, "decided_by_id": p.UserID, "decided_at": now, "reject_reason": reason,
	}, "reject"); err != nil {
		return nil, err
	}
	return s.load(ctx, packageID)
}

// Dispatch re-validates every allocation against live balances and commits
// all movements atomically. When stock moved since planning, it fails with
// StaleAllocationError and the package stays APPROVED for re-allocation;
// nothing is ever partially dispatched.
func (s *Service) Dispatch(ctx context.Context, p auth.Principal, packageID uint) (*models.DistributionPackage, error) {
	if err := s.guardOfficer(p); err != nil {
		return nil, err
	}
	pkg, err := s.load(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.Status != models.PackageApproved {
		return nil, &apperr.InvalidStateError{Entity: "distribution_package", ID: packageID, Current: string(pkg.Status), Attempted: "dispatch"}
	}

	var list models.NeedsList
	if err := s.db.WithContext(ctx).First(&list, pkg.NeedsListID).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	movements := make([]ledger.Movement, 0, len(pkg.Allocations))
	for _, a := range pkg.Allocations {
		src := a.SourceDepotID
		movements = append(movements, ledger.Movement{
			ItemID:        a.ItemID,
			Quantity:      a.Quantity,
			SourceDepotID: &src,
			DestDepotID:   &list.DepotID,
			EventID:       list.EventID,
			Note:          fmt.Sprintf("distribution package #%d", pkg.ID),
			RecordedByID:  p.UserID,
		})
	}

	allocationIDs := make([]uint, len(pkg.Allocations))
	for i, a := range pkg.Allocations {
		allocationIDs[i] = a.ID
	}

	_, err = s.ledger.Commit(ctx, ledger.Batch{
		Movements: movements,
		Before: func(tx *gorm.DB) error {
			res := tx.Model(&models.DistributionPackage{}).
				Where("id = ? AND status = ?", packageID, models.PackageApproved).
				Updates(map[string]any{"status": models.PackageDispatched, "dispatched_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return s.invalidState(tx, packageID, "dispatch")
			}
			return nil
		},
		After: func(tx *gorm.DB, pairIDs []string) error {
			for i, id := range allocationIDs {
				if err := tx.Model(&models.DistributionAllocation{}).
					Where("id = ?", id).
					Update("pair_id", pairIDs[i]).Error; err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientStock) {
			s.log.Warn().Uint("package_id", packageID).Msg("dispatch hit stale allocation")
			return nil, fmt.Errorf("%w: %v", apperr.ErrStaleAllocation, err)
		}
		return nil, err
	}
	s.log.Info().Uint("package_id", packageID).Msg("distribution package dispatched")
	return s.load(ctx, packageID)
}

// Receive moves DISPATCHED -> RECEIVED. Terminal, bookkeeping only.
func (s *Service) Receive(ctx context.Context, p auth.Principal, packageID uint) (*models.DistributionPackage, error) {
	pkg, err := s.load(ctx, packageID)
	if err != nil {
		return nil, err
	}
	var list models.NeedsList
	if err := s.db.WithContext(ctx).First(&list, pkg.NeedsListID).Error; err != nil {
		return nil, err
	}
	if err := s.guardReceiver(ctx, p, list.DepotID); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.claim(ctx, packageID, models.PackageDispatched, map[string]any{
		"status": models.PackageReceived, "received_at": now,
	}, "receive"); err != nil {
		return nil, err
	}
	return s.load(ctx, packageID)
}

func (s *Service) claim(ctx context.Context, id uint, from models.PackageStatus, updates map[string]any, verb string) error {
	res := s.db.WithContext(ctx).Model(&models.DistributionPackage{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.invalidState(s.db.WithContext(ctx), id, verb)
	}
	return nil
}

func (s *Service) invalidState(tx *gorm.DB, id uint, verb string) error {
	var current models.DistributionPackage
	state := "unknown"
	if err := tx.First(&current, id).Error; err == nil {
		state = string(current.Status)
	}
	return &apperr.InvalidStateError{Entity: "distribution_package", ID: id, Current: state, Attempted: verb}
}

func (s *Service) load(ctx context.Context, id uint) (*models.DistributionPackage, error) {
	var pkg models.DistributionPackage
	if err := s.db.WithContext(ctx).
		Preload("Allocations").Preload("Allocations.Item").Preload("Allocations.SourceDepot").
		First(&pkg, id).Error; err != nil {
		return nil, fmt.Errorf("%w: distribution package %d", apperr.ErrNotFound, id)
	}
	return &pkg, nil
}

func (s *Service) guardOfficer(p auth.Principal) error {
	if !p.HasRole(models.RoleLogisticsOfficer, models.RoleLogisticsManager) {
		return fmt.Errorf("%w: distribution packages are handled by logistics staff", apperr.ErrForbidden)
	}
	return nil
}

func (s *Service) guardManager(p auth.Principal) error {
	if !p.HasRole(models.RoleLogisticsManager) {
		return fmt.Errorf("%w: package decisions require a logistics manager", apperr.ErrForbidden)
	}
	return nil
}

func (s *Service) guardReceiver(ctx context.Context, p auth.Principal, depotID uint) error {
	if p.Role == models.RoleAdmin {
		return nil
	}
	if p.DepotID == nil {
		return fmt.Errorf("%w: no home depot", apperr.ErrForbidden)
	}
	if *p.DepotID == depotID {
		return nil
	}
	var home models.Depot
	if err := s.db.WithContext(ctx).First(&home, *p.DepotID).Error; err != nil {
		return fmt.Errorf("%w: depot %d", apperr.ErrNotFound, *p.DepotID)
	}
	if home.Tier == models.TierMain {
		return nil
	}
	return fmt.Errorf("%w: receipt is confirmed by the receiving depot", apperr.ErrForbidden)
}
