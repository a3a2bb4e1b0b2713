// Package needslist implements the needs-list workflow: AGENCY/SUB hubs
// request items, MAIN hubs review with per-item approved quantities, dispatch
// moves the stock in one atomic ledger commit, receipt and closure are
// bookkeeping.
package needslist

import (
	"context"
	"fmt"
	"time"

	"drims-backend/internal/apperr"
	"drims-backend/internal/auth"
	"drims-backend/internal/ledger"
	"drims-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	ledger *ledger.Service
	log    zerolog.Logger
}

func NewService(db *gorm.DB, lgr *ledger.Service, log zerolog.Logger) *Service {
	return &Service{db: db, ledger: lgr, log: log}
}

type Line struct {
	ItemID   uint
	Quantity int64
}

type ItemDecision struct {
	ItemID      uint
	ApprovedQty int64
}

type Allocation struct {
	ItemID        uint
	SourceDepotID uint
	Quantity      int64
}

// CreateDraft opens a DRAFT list for a SUB or AGENCY depot.
func (s *Service) CreateDraft(ctx context.Context, p auth.Principal, depotID uint, eventID *uint, note string, lines []Line) (*models.NeedsList, error) {
	var depot models.Depot
	if err := s.db.WithContext(ctx).First(&depot, depotID).Error; err != nil {
		return nil, fmt.Errorf("%w: depot %d", apperr.ErrNotFound, depotID)
	}
	if depot.Tier == models.TierMain {
		return nil, fmt.Errorf("%w: needs lists are raised by SUB or AGENCY depots", apperr.ErrValidation)
	}
	if err := s.guardOwningDepot(ctx, p, depotID); err != nil {
		return nil, err
	}

	list := models.NeedsList{
		DepotID:     depotID,
		EventID:     eventID,
		Status:      models.NeedsListDraft,
		Note:        note,
		CreatedByID: p.UserID,
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperr.ErrInvalidQuantity
		}
		list.Items = append(list.Items, models.NeedsListItem{ItemID: l.ItemID, RequestedQty: l.Quantity})
	}

	if err := s.db.WithContext(ctx).Create(&list).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

// SetLines replaces the requested lines of a DRAFT list.
func (s *Service) SetLines(ctx context.Context, p auth.Principal, listID uint, lines []Line) (*models.NeedsList, error) {
	list, err := s.load(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := s.guardOwningDepot(ctx, p, list.DepotID); err != nil {
		return nil, err
	}
	if list.Status != models.NeedsListDraft {
		return nil, &apperr.InvalidStateError{Entity: "needs_list", ID: listID, Current: string(list.Status), Attempted: "edit lines"}
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperr.ErrInvalidQuantity
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("needs_list_id = ?", listID).Delete(&models.NeedsListItem{}).Error; err != nil {
			return err
		}
		for _, l := range lines {
			item := models.NeedsListItem{NeedsListID: listID, ItemID: l.ItemID, RequestedQty: l.Quantity}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, listID)
}

// Submit moves DRAFT -> SUBMITTED. The list must carry at least one line with
// a positive quantity.
func (s *Service) Submit(ctx context.Context, p auth.Principal, listID uint) (*models.NeedsList, error) {
	list, err := s.load(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := s.guardOwningDepot(ctx, p, list.DepotID); err != nil {
		return nil, err
	}

	hasLine := false
	for _, it := range list.Items {
		if it.RequestedQty > 0 {
			hasLine = true
			break
		}
	}
	if !hasLine {
		return nil, apperr.ErrEmptyList
	}

	if err := claimTx(s.db.WithContext(ctx), listID, models.NeedsListSubmitted, "submit", models.NeedsListDraft); err != nil {
		return nil, err
	}
	return s.load(ctx, listID)
}

// Review records per-item approved quantities. All-zero approvals terminate
// the list REJECTED; anything else moves it to APPROVED. Partial approval per
// line is allowed.
func (s *Service) Review(ctx context.Context, p auth.Principal, listID uint, decisions []ItemDecision) (*models.NeedsList, error) {
	if err := s.guardMainApprover(ctx, p); err != nil {
		return nil, err
	}
	list, err := s.load(ctx, listID)
	if err != nil {
		return nil, err
	}

	byItem := make(map[uint]*models.NeedsListItem, len(list.Items))
	for i := range list.Items {
		byItem[list.Items[i].ItemID] = &list.Items[i]
	}
	approvedTotal := int64(0)
	for _, d := range decisions {
		line, ok := byItem[d.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d is not on list %d", apperr.ErrValidation, d.ItemID, listID)
		}
		if d.ApprovedQty < 0 || d.ApprovedQty > line.RequestedQty {
			return nil, fmt.Errorf("%w: approved quantity for item %d must be within [0, %d]",
				apperr.ErrValidation, d.ItemID, line.RequestedQty)
		}
		approvedTotal += d.ApprovedQty
	}

	target := models.NeedsListApproved
	if approvedTotal == 0 {
		target = models.NeedsListRejected
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.NeedsList{}).
			Where("id = ? AND status = ?", listID, models.NeedsListSubmitted).
			Updates(map[string]any{"status": target, "reviewed_by_id": p.UserID, "reviewed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return invalidState(tx, listID, "review")
		}
		for _, d := range decisions {
			if err := tx.Model(&models.NeedsListItem{}).
				Where("needs_list_id = ? AND item_id = ?", listID, d.ItemID).
				Update("approved_qty", d.ApprovedQty).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, listID)
}

// Dispatch moves the approved quantities from the allocated source depots to
// the requesting depot as one atomic commit. Any failure leaves the list
// APPROVED with no ledger writes.
func (s *Service) Dispatch(ctx context.Context, p auth.Principal, listID uint, allocations []Allocation) (*models.NeedsList, error) {
	if err := s.guardMainApprover(ctx, p); err != nil {
		return nil, err
	}
	list, err := s.load(ctx, listID)
	if err != nil {
		return nil, err
	}

	if err := checkAllocations(list, allocations); err != nil {
		return nil, err
	}

	now := time.Now()
	movements := make([]ledger.Movement, 0, len(allocations))
	for _, a := range allocations {
		src := a.SourceDepotID
		movements = append(movements, ledger.Movement{
			ItemID:        a.ItemID,
			Quantity:      a.Quantity,
			SourceDepotID: &src,
			DestDepotID:   &list.DepotID,
			EventID:       list.EventID,
			Note:          fmt.Sprintf("needs list #%d dispatch", list.ID),
			RecordedByID:  p.UserID,
		})
	}

	_, err = s.ledger.Commit(ctx, ledger.Batch{
		Movements: movements,
		Before: func(tx *gorm.DB) error {
			res := tx.Model(&models.NeedsList{}).
				Where("id = ? AND status = ?", listID, models.NeedsListApproved).
				Updates(map[string]any{"status": models.NeedsListDispatched, "dispatched_by_id": p.UserID, "dispatched_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return invalidState(tx, listID, "dispatch")
			}
			return nil
		},
		After: func(tx *gorm.DB, pairIDs []string) error {
			for i, a := range allocations {
				row := models.NeedsListAllocation{
					NeedsListID:   listID,
					ItemID:        a.ItemID,
					SourceDepotID: a.SourceDepotID,
					Quantity:      a.Quantity,
					PairID:        pairIDs[i],
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("list_id", listID).Int("allocations", len(allocations)).Msg("needs list dispatched")
	return s.load(ctx, listID)
}

// Receive confirms arrival at the requesting depot. Pure bookkeeping; stock
// already moved at dispatch.
func (s *Service) Receive(ctx context.Context, p auth.Principal, listID uint) (*models.NeedsList, error) {
	list, err := s.load(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := s.guardOwningDepot(ctx, p, list.DepotID); err != nil {
		return nil, err
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.NeedsList{}).
		Where("id = ? AND status = ?", listID, models.NeedsListDispatched).
		Updates(map[string]any{"status": models.NeedsListReceived, "received_by_id": p.UserID, "received_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, invalidState(s.db.WithContext(ctx), listID, "receive")
	}
	return s.load(ctx, listID)
}

// Close terminates the workflow.
func (s *Service) Close(ctx context.Context, p auth.Principal, listID uint) (*models.NeedsList, error) {
	list, err := s.load(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := s.guardOwningDepot(ctx, p, list.DepotID); err != nil {
		return nil, err
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.NeedsList{}).
		Where("id = ? AND status = ?", listID, models.NeedsListReceived).
		Updates(map[string]any{"status": models.NeedsListClosed, "closed_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, invalidState(s.db.WithContext(ctx), listID, "close")
	}
	return s.load(ctx, listID)
}

// checkAllocations requires each approved line to be covered exactly and
// nothing beyond the approved lines to move.
func checkAllocations(list *models.NeedsList, allocations []Allocation) error {
	if list.Status != models.NeedsListApproved {
		return &apperr.InvalidStateError{Entity: "needs_list", ID: list.ID, Current: string(list.Status), Attempted: "dispatch"}
	}
	approved := make(map[uint]int64, len(list.Items))
	for _, it := range list.Items {
		if it.ApprovedQty > 0 {
			approved[it.ItemID] = it.ApprovedQty
		}
	}
	allocated := make(map[uint]int64, len(allocations))
	for _, a := range allocations {
		if a.Quantity <= 0 {
			return apperr.ErrInvalidQuantity
		}
		if _, ok := approved[a.ItemID]; !ok {
			return fmt.Errorf("%w: item %d has no approved quantity", apperr.ErrAllocationMismatch, a.ItemID)
		}
		allocated[a.ItemID] += a.Quantity
	}
	for itemID, want := range approved {
		if allocated[itemID] != want {
			return fmt.Errorf("%w: item %d allocated %d of approved %d",
				apperr.ErrAllocationMismatch, itemID, allocated[itemID], want)
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, id uint) (*models.NeedsList, error) {
	var list models.NeedsList
	if err := s.db.WithContext(ctx).
		Preload("Items").Preload("Items.Item").Preload("Allocations").Preload("Depot").
		First(&list, id).Error; err != nil {
		return nil, fmt.Errorf("%w: needs list %d", apperr.ErrNotFound, id)
	}
	return &list, nil
}

func invalidState(tx *gorm.DB, listID uint, verb string) error {
	var current models.NeedsList
	state := "unknown"
	if err := tx.First(&current, listID).Error; err == nil {
		state = string(current.Status)
	}
	return &apperr.InvalidStateError{Entity: "needs_list", ID: listID, Current: state, Attempted: verb}
}

func claimTx(tx *gorm.DB, listID uint, to models.NeedsListStatus, verb string, from models.NeedsListStatus) error {
	res := tx.Model(&models.NeedsList{}).
		Where("id = ? AND status = ?", listID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invalidState(tx, listID, verb)
	}
	return nil
}

// guardOwningDepot: list-side actions belong to the owning depot's staff,
// with MAIN-hub staff allowed to act on a request's behalf.
func (s *Service) guardOwningDepot(ctx context.Context, p auth.Principal, depotID uint) error {
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
	return fmt.Errorf("%w: action is limited to the owning depot or MAIN-hub staff", apperr.ErrForbidden)
}

// guardMainApprover: review/dispatch require MAIN-hub logistics staff.
func (s *Service) guardMainApprover(ctx context.Context, p auth.Principal) error {
	if p.Role == models.RoleAdmin {
		return nil
	}
	if !p.HasRole(models.RoleLogisticsManager, models.RoleLogisticsOfficer) {
		return fmt.Errorf("%w: needs-list review requires a logistics manager or officer", apperr.ErrForbidden)
	}
	if p.DepotID == nil {
		return fmt.Errorf("%w: no home depot", apperr.ErrForbidden)
	}
	var home models.Depot
	if err := s.db.WithContext(ctx).First(&home, *p.DepotID).Error; err != nil {
		return fmt.Errorf("%w: depot %d", apperr.ErrNotFound, *p.DepotID)
	}
	if home.Tier != models.TierMain {
		return fmt.Errorf("%w: needs-list review requires MAIN-hub staff", apperr.ErrForbidden)
	}
	return nil
}

// Amend corrects one fulfilment line of a RECEIVED or CLOSED list. The delta
// is issued as a fresh ledger movement (short deliveries return stock to the
// source, over-deliveries move the difference), and every change lands in the
// fulfilment edit log under one session id.
func (s *Service) Amend(ctx context.Context, p auth.Principal, listID, allocationID uint, newQty int64, reason string) (*models.FulfilmentEditLog, error) {
	if err := s.guardMainApprover(ctx, p); err != nil {
		return nil, err
	}
	if newQty < 0 {
		return nil, apperr.ErrInvalidQuantity
	}

	list, err := s.load(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.Status != models.NeedsListReceived && list.Status != models.NeedsListClosed {
		return nil, &apperr.InvalidStateError{Entity: "needs_list", ID: listID, Current: string(list.Status), Attempted: "amend fulfilment"}
	}

	var alloc models.NeedsListAllocation
	if err := s.db.WithContext(ctx).
		Where("id = ? AND needs_list_id = ?", allocationID, listID).
		First(&alloc).Error; err != nil {
		return nil, fmt.Errorf("%w: allocation %d on list %d", apperr.ErrNotFound, allocationID, listID)
	}
	delta := newQty - alloc.Quantity
	if delta == 0 {
		return nil, fmt.Errorf("%w: quantity is unchanged", apperr.ErrValidation)
	}

	mv := ledger.Movement{
		ItemID:       alloc.ItemID,
		Quantity:     delta,
		EventID:      list.EventID,
		Note:         fmt.Sprintf("needs list #%d fulfilment correction", listID),
		RecordedByID: p.UserID,
	}
	if delta > 0 {
		// more was delivered than recorded
		mv.SourceDepotID = &alloc.SourceDepotID
		mv.DestDepotID = &list.DepotID
	} else {
		// short delivery: stock goes back to the source depot
		mv.Quantity = -delta
		mv.SourceDepotID = &list.DepotID
		mv.DestDepotID = &alloc.SourceDepotID
	}

	sessionID := uuid.NewString()
	var entry models.FulfilmentEditLog
	_, err = s.ledger.Commit(ctx, ledger.Batch{
		Movements: []ledger.Movement{mv},
		After: func(tx *gorm.DB, pairIDs []string) error {
			if err := tx.Model(&models.NeedsListAllocation{}).
				Where("id = ?", allocationID).
				Update("quantity", newQty).Error; err != nil {
				return err
			}
			entry = models.FulfilmentEditLog{
				EditSessionID: sessionID,
				NeedsListID:   listID,
				AllocationID:  &allocationID,
				Field:         "quantity",
				OldValue:      fmt.Sprintf("%d", alloc.Quantity),
				NewValue:      fmt.Sprintf("%d", newQty),
				Reason:        reason,
				PairID:        pairIDs[0],
				EditedByID:    p.UserID,
			}
			return tx.Create(&entry).Error
		},
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("list_id", listID).Uint("allocation_id", allocationID).Str("session", sessionID).Msg("fulfilment amended")
	return &entry, nil
}
