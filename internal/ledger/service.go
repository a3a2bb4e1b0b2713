// Package ledger is the append-only stock ledger. Current stock is never
// stored; every write revalidates against a balance folded fresh inside the
// same transaction, under a per-(depot,item) serialization point.
package ledger

import (
	"context"
	"fmt"
	"time"

	"drims-backend/internal/apperr"
	"drims-backend/internal/models"
	"drims-backend/internal/stock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Movement describes one stock movement before it becomes a linked entry
// pair. Quantity is the positive magnitude; the sign is applied per side.
// A nil SourceDepotID means an external source (donation intake), a nil
// DestDepotID means an external sink (relief distribution).
type Movement struct {
	ItemID        uint
	Quantity      int64
	SourceDepotID *uint
	DestDepotID   *uint
	OccurredAt    time.Time // zero value means now
	ExpiryDate    *time.Time
	DonorID       *uint
	BeneficiaryID *uint
	EventID       *uint
	Note          string
	RecordedByID  uint
}

// Batch is one atomic unit of work: the workflow's state claim (Before), the
// ledger writes, and the workflow's finalization (After) commit or roll back
// together.
type Batch struct {
	Movements []Movement
	Before    func(tx *gorm.DB) error
	After     func(tx *gorm.DB, pairIDs []string) error
}

type Service struct {
	db    *gorm.DB
	locks *balanceLocks
	log   zerolog.Logger
}

func New(db *gorm.DB, log zerolog.Logger) *Service {
	return &Service{db: db, locks: newBalanceLocks(), log: log}
}

// Append records a single movement. Returns the ledger pair id.
func (s *Service) Append(ctx context.Context, mv Movement) (string, error) {
	pairIDs, err := s.Commit(ctx, Batch{Movements: []Movement{mv}})
	if err != nil {
		return "", err
	}
	return pairIDs[0], nil
}

// Commit validates and writes a batch of movements atomically. Source
// balances are recomputed inside the transaction; an earlier feasibility
// check is never trusted.
func (s *Service) Commit(ctx context.Context, b Batch) ([]string, error) {
	if len(b.Movements) == 0 {
		return nil, fmt.Errorf("%w: batch has no movements", apperr.ErrValidation)
	}
	keys := make([]string, 0, len(b.Movements)*2)
	for i := range b.Movements {
		mv := &b.Movements[i]
		if err := validateMovement(mv); err != nil {
			return nil, err
		}
		if mv.SourceDepotID != nil {
			keys = append(keys, accountKey(*mv.SourceDepotID, mv.ItemID))
		}
		if mv.DestDepotID != nil {
			keys = append(keys, accountKey(*mv.DestDepotID, mv.ItemID))
		}
	}

	release := s.locks.acquire(keys)
	defer release()

	pairIDs := make([]string, 0, len(b.Movements))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if b.Before != nil {
			if err := b.Before(tx); err != nil {
				return err
			}
		}
		for _, mv := range b.Movements {
			pairID, err := writeMovement(tx, mv)
			if err != nil {
				return err
			}
			pairIDs = append(pairIDs, pairID)
		}
		if b.After != nil {
			if err := b.After(tx, pairIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().Strs("pair_ids", pairIDs).Int("movements", len(b.Movements)).Msg("ledger commit")
	return pairIDs, nil
}

// Void marks a linked pair VOID and appends a compensating pair. Committed
// entries are never mutated beyond the status marker; the entries of both
// pairs stay on file as the audit record, and balances (which fold COMMITTED
// entries only) drop the erroneous movement the moment the marker lands.
// Fails if dropping the movement would drive any affected balance negative.
func (s *Service) Void(ctx context.Context, pairID, reason string, actorID uint) error {
	var entries []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("pair_id = ? AND status = ?", pairID, models.TxnCommitted).
		Find(&entries).Error; err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: ledger pair %s", apperr.ErrNotFound, pairID)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, accountKey(e.DepotID, e.ItemID))
	}
	release := s.locks.acquire(keys)
	defer release()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Transaction{}).
			Where("pair_id = ? AND status = ?", pairID, models.TxnCommitted).
			Updates(map[string]any{"status": models.TxnVoid, "void_reason": reason})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(entries)) {
			// lost a race with another void of the same pair
			return fmt.Errorf("%w: ledger pair %s", apperr.ErrNotFound, pairID)
		}

		// The pair no longer counts toward balances; make sure no account
		// went negative (e.g. voiding a donation that was since spent).
		for _, e := range entries {
			bal, err := stock.BalanceTx(tx, e.DepotID, e.ItemID, nil)
			if err != nil {
				return err
			}
			if bal < 0 {
				return &apperr.InsufficientStockError{
					DepotID:   e.DepotID,
					ItemID:    e.ItemID,
					Available: bal + abs(e.Quantity),
					Requested: abs(e.Quantity),
				}
			}
		}

		// Offsetting record: same accounts, opposite signs, marked VOID so
		// the fold ignores it like its originals.
		now := time.Now()
		compPairID := uuid.NewString()
		comp := make([]models.Transaction, 0, len(entries))
		for _, e := range entries {
			comp = append(comp, models.Transaction{
				PairID:       compPairID,
				ItemID:       e.ItemID,
				DepotID:      e.DepotID,
				Quantity:     -e.Quantity,
				Status:       models.TxnVoid,
				OccurredAt:   now,
				Note:         fmt.Sprintf("reversal of pair %s: %s", pairID, reason),
				VoidReason:   reason,
				RecordedByID: actorID,
			})
		}
		return tx.Create(&comp).Error
	})
}

func validateMovement(mv *Movement) error {
	if mv.Quantity <= 0 {
		return apperr.ErrInvalidQuantity
	}
	if mv.ItemID == 0 {
		return fmt.Errorf("%w: item is required", apperr.ErrValidation)
	}
	if mv.SourceDepotID == nil && mv.DestDepotID == nil {
		return fmt.Errorf("%w: movement needs at least one depot account", apperr.ErrValidation)
	}
	if mv.SourceDepotID != nil && mv.DestDepotID != nil && *mv.SourceDepotID == *mv.DestDepotID {
		return fmt.Errorf("%w: source and destination depots are the same", apperr.ErrValidation)
	}
	if mv.OccurredAt.IsZero() {
		mv.OccurredAt = time.Now()
	}
	return nil
}

// writeMovement checks the source balance folded inside tx and inserts the
// linked entries.
func writeMovement(tx *gorm.DB, mv Movement) (string, error) {
	if mv.SourceDepotID != nil {
		bal, err := stock.BalanceTx(tx, *mv.SourceDepotID, mv.ItemID, nil)
		if err != nil {
			return "", err
		}
		if bal < mv.Quantity {
			return "", &apperr.InsufficientStockError{
				DepotID:   *mv.SourceDepotID,
				ItemID:    mv.ItemID,
				Available: bal,
				Requested: mv.Quantity,
			}
		}
	}

	pairID := uuid.NewString()
	base := models.Transaction{
		PairID:        pairID,
		ItemID:        mv.ItemID,
		Status:        models.TxnCommitted,
		OccurredAt:    mv.OccurredAt,
		ExpiryDate:    mv.ExpiryDate,
		DonorID:       mv.DonorID,
		BeneficiaryID: mv.BeneficiaryID,
		EventID:       mv.EventID,
		Note:          mv.Note,
		RecordedByID:  mv.RecordedByID,
	}

	var src, dst *models.Transaction
	if mv.SourceDepotID != nil {
		e := base
		e.DepotID = *mv.SourceDepotID
		e.Quantity = -mv.Quantity
		src = &e
	}
	if mv.DestDepotID != nil {
		e := base
		e.DepotID = *mv.DestDepotID
		e.Quantity = mv.Quantity
		dst = &e
	}

	if src != nil && dst != nil && src.Quantity+dst.Quantity != 0 {
		return "", fmt.Errorf("%w: pair for item %d sums to %d",
			apperr.ErrUnbalancedEntry, mv.ItemID, src.Quantity+dst.Quantity)
	}

	if src != nil {
		if err := tx.Create(src).Error; err != nil {
			return "", err
		}
	}
	if dst != nil {
		if src != nil {
			dst.CounterID = &src.ID
		}
		if err := tx.Create(dst).Error; err != nil {
			return "", err
		}
		if src != nil {
			if err := tx.Model(src).Update("counter_id", dst.ID).Error; err != nil {
				return "", err
			}
		}
	}
	return pairID, nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
