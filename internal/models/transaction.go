package models

import "time"

type TransactionStatus string

const (
	TxnCommitted TransactionStatus = "COMMITTED"
	TxnVoid      TransactionStatus = "VOID"
)

// Transaction: one signed ledger entry against a depot account.
// Every internal stock movement is exactly two linked entries summing to zero
// (CounterID points at the paired opposite-sign entry). Donations and relief
// distributions have an implicit external account, so they are stored as a
// single entry with no counter. Committed entries are never mutated;
// corrections go through Void, which appends a compensating pair.
type Transaction struct {
	ID         uint              `gorm:"primaryKey"`
	PairID     string            `gorm:"size:36;not null;index"` // shared by both sides of a movement
	CounterID  *uint             `gorm:"index"`                  // nil for external-source/sink entries
	ItemID     uint              `gorm:"index;not null"`
	Item       Item
	DepotID    uint `gorm:"index;not null"` // the account affected
	Depot      Depot
	Quantity   int64             `gorm:"not null"` // signed: negative at source, positive at destination
	Status     TransactionStatus `gorm:"size:12;not null;default:'COMMITTED';index"`
	OccurredAt time.Time         `gorm:"index;not null"`
	ExpiryDate *time.Time        `gorm:"index"` // optional, set on inbound lots

	DonorID       *uint `gorm:"index"`
	Donor         *Donor
	BeneficiaryID *uint `gorm:"index"`
	Beneficiary   *Beneficiary
	EventID       *uint `gorm:"index"`
	Event         *DisasterEvent

	Note         string `gorm:"size:255"`
	VoidReason   string `gorm:"size:255"`
	RecordedByID uint   `gorm:"index;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
