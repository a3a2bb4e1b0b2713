package models

import "time"

// FulfilmentEditLog: audit trail for post-receipt corrections to a needs-list
// fulfilment. Related edits made in one call share an EditSessionID. The
// correction itself is issued as offsetting ledger entries (PairID), never as
// an edit to a committed transaction.
type FulfilmentEditLog struct {
	ID            uint   `gorm:"primaryKey"`
	EditSessionID string `gorm:"size:36;not null;index"`
	NeedsListID   uint   `gorm:"index;not null"`
	AllocationID  *uint  `gorm:"index"` // nil for list-level edits
	Field         string `gorm:"size:50;not null"`
	OldValue      string `gorm:"size:255"`
	NewValue      string `gorm:"size:255"`
	Reason        string `gorm:"size:500"`
	PairID        string `gorm:"size:36"` // offsetting movement, if any
	EditedByID    uint   `gorm:"index;not null"`
	CreatedAt     time.Time
}
