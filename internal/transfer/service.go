// Package transfer implements the depot-to-depot transfer workflow.
// MAIN-initiated movements execute immediately against the ledger; SUB/AGENCY
// initiated ones become a PENDING TransferRequest that a MAIN-hub approver
// decides.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drims-backend/internal/apperr"
	"drims-backend/internal/auth"
	"drims-backend/internal/ledger"
	"drims-backend/internal/models"
	"drims-backend/internal/topology"

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

// Outcome of Request: either an immediately executed movement (PairID set) or
// a persisted PENDING request awaiting MAIN approval.
type Outcome struct {
	Executed bool
	PairID   string
	Request  *models.TransferRequest
}

// Request routes a transfer through hub topology. Immediate execution happens
// synchronously and persists no request object.
func (s *Service) Request(ctx context.Context, p auth.Principal, sourceID, destID, itemID uint, qty int64, note string) (*Outcome, error) {
	if qty <= 0 {
		return nil, apperr.ErrInvalidQuantity
	}

	source, err := s.loadDepot(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	dest, err := s.loadDepot(ctx, destID)
	if err != nil {
		return nil, err
	}
	if source.ID == dest.ID {
		return nil, fmt.Errorf("%w: source and destination depots are the same", apperr.ErrValidation)
	}
	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, itemID).Error; err != nil {
		return nil, fmt.Errorf("%w: item %d", apperr.ErrNotFound, itemID)
	}

	if err := s.guardActingDepot(ctx, p, source.ID); err != nil {
		return nil, err
	}

	route, err := topology.RouteFor(source.Tier, dest.Tier)
	if err != nil {
		return nil, err
	}

	if route == topology.RouteImmediate {
		pairID, err := s.ledger.Append(ctx, ledger.Movement{
			ItemID:        itemID,
			Quantity:      qty,
			SourceDepotID: &source.ID,
			DestDepotID:   &dest.ID,
			Note:          note,
			RecordedByID:  p.UserID,
		})
		if err != nil {
			return nil, err
		}
		s.log.Info().Uint("source", source.ID).Uint("dest", dest.ID).Int64("qty", qty).Str("pair_id", pairID).Msg("main transfer executed")
		return &Outcome{Executed: true, PairID: pairID}, nil
	}

	req := models.TransferRequest{
		SourceDepotID: source.ID,
		DestDepotID:   dest.ID,
		ItemID:        itemID,
		Quantity:      qty,
		Status:        models.TransferPending,
		RequestedByID: p.UserID,
	}
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, err
	}
	s.log.Info().Uint("request_id", req.ID).Msg("transfer request pending approval")
	return &Outcome{Request: &req}, nil
}

// Decide approves or rejects a PENDING request. Approval re-validates the
// source balance inside the ledger commit; when that re-validation fails the
// request is recorded as REJECTED with the stale-stock reason rather than
// surfacing an error to the approver.
func (s *Service) Decide(ctx context.Context, p auth.Principal, requestID uint, approve bool, reason string) (*models.TransferRequest, error) {
	if err := s.guardMainApprover(ctx, p); err != nil {
		return nil, err
	}

	var req models.TransferRequest
	if err := s.db.WithContext(ctx).First(&req, requestID).Error; err != nil {
		return nil, fmt.Errorf("%w: transfer request %d", apperr.ErrNotFound, requestID)
	}

	now := time.Now()
	if !approve {
		if err := s.claim(ctx, requestID, models.TransferPending, map[string]any{
			"status":        models.TransferRejected,
			"decided_by_id": p.UserID,
			"decided_at":    now,
			"reject_reason": reason,
		}, "reject"); err != nil {
			return nil, err
		}
		return s.reload(ctx, requestID)
	}

	_, err := s.ledger.Commit(ctx, ledger.Batch{
		Movements: []ledger.Movement{{
			ItemID:        req.ItemID,
			Quantity:      req.Quantity,
			SourceDepotID: &req.SourceDepotID,
			DestDepotID:   &req.DestDepotID,
			Note:          fmt.Sprintf("transfer request #%d", req.ID),
			RecordedByID:  p.UserID,
		}},
		Before: func(tx *gorm.DB) error {
			return claimTx(tx, requestID, models.TransferPending, map[string]any{
				"status":        models.TransferApproved,
				"decided_by_id": p.UserID,
				"decided_at":    now,
			}, "approve")
		},
		After: func(tx *gorm.DB, pairIDs []string) error {
			return tx.Model(&models.TransferRequest{}).
				Where("id = ?", requestID).
				Updates(map[string]any{"status": models.TransferExecuted, "pair_id": pairIDs[0]}).Error
		},
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientStock) {
			// Stock moved since the request was made. The requester needs a
			// recorded outcome, so the request terminates REJECTED.
			if cerr := s.claim(ctx, requestID, models.TransferPending, map[string]any{
				"status":        models.TransferRejected,
				"decided_by_id": p.UserID,
				"decided_at":    now,
				"reject_reason": models.RejectReasonStaleStock,
			}, "reject"); cerr != nil {
				return nil, cerr
			}
			s.log.Warn().Uint("request_id", requestID).Msg("transfer approval rejected on stale stock")
			return s.reload(ctx, requestID)
		}
		return nil, err
	}
	return s.reload(ctx, requestID)
}

func (s *Service) claim(ctx context.Context, id uint, from models.TransferStatus, updates map[string]any, verb string) error {
	return claimTx(s.db.WithContext(ctx), id, from, updates, verb)
}

// claimTx is the optimistic transition: a conditional update whose row count
// tells us whether this caller won the state change.
func claimTx(tx *gorm.DB, id uint, from models.TransferStatus, updates map[string]any, verb string) error {
	res := tx.Model(&models.TransferRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current models.TransferRequest
		state := "unknown"
		if err := tx.First(&current, id).Error; err == nil {
			state = string(current.Status)
		}
		return &apperr.InvalidStateError{Entity: "transfer_request", ID: id, Current: state, Attempted: verb}
	}
	return nil
}

func (s *Service) reload(ctx context.Context, id uint) (*models.TransferRequest, error) {
	var req models.TransferRequest
	if err := s.db.WithContext(ctx).
		Preload("SourceDepot").Preload("DestDepot").Preload("Item").
		First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Service) loadDepot(ctx context.Context, id uint) (*models.Depot, error) {
	var depot models.Depot
	if err := s.db.WithContext(ctx).First(&depot, id).Error; err != nil {
		return nil, fmt.Errorf("%w: depot %d", apperr.ErrNotFound, id)
	}
	return &depot, nil
}

// guardActingDepot: the requester must act for the source depot, unless they
// are MAIN-hub staff (or an admin).
func (s *Service) guardActingDepot(ctx context.Context, p auth.Principal, sourceID uint) error {
	if p.Role == models.RoleAdmin {
		return nil
	}
	if p.DepotID == nil {
		return fmt.Errorf("%w: no home depot", apperr.ErrForbidden)
	}
	if *p.DepotID == sourceID {
		return nil
	}
	home, err := s.loadDepot(ctx, *p.DepotID)
	if err != nil {
		return err
	}
	if home.Tier == models.TierMain {
		return nil
	}
	return fmt.Errorf("%w: transfers must be requested by the source depot or MAIN-hub staff", apperr.ErrForbidden)
}

// guardMainApprover: decisions require a MAIN-hub logistics manager/officer.
func (s *Service) guardMainApprover(ctx context.Context, p auth.Principal) error {
	if p.Role == models.RoleAdmin {
		return nil
	}
	if !p.HasRole(models.RoleLogisticsManager, models.RoleLogisticsOfficer) {
		return fmt.Errorf("%w: transfer decisions require a logistics manager or officer", apperr.ErrForbidden)
	}
	if p.DepotID == nil {
		return fmt.Errorf("%w: no home depot", apperr.ErrForbidden)
	}
	home, err := s.loadDepot(ctx, *p.DepotID)
	if err != nil {
		return err
	}
	if home.Tier != models.TierMain {
		return fmt.Errorf("%w: transfer decisions require MAIN-hub staff", apperr.ErrForbidden)
	}
	return nil
}
