package models

import "time"

type TransferStatus string

const (
	TransferPending  TransferStatus = "PENDING"
	TransferApproved TransferStatus = "APPROVED"
	TransferRejected TransferStatus = "REJECTED"
	TransferExecuted TransferStatus = "EXECUTED"
)

// RejectReasonStaleStock: approval re-validation found the source balance no
// longer sufficient; recorded on the request instead of surfacing an error to
// the approver.
const RejectReasonStaleStock = "StaleInsufficientStock"

// TransferRequest: depot-to-depot movement awaiting MAIN-hub approval.
// Created only when the source depot tier is SUB or AGENCY; MAIN-initiated
// transfers execute immediately and never persist a request.
type TransferRequest struct {
	ID            uint `gorm:"primaryKey"`
	SourceDepotID uint `gorm:"index;not null"`
	SourceDepot   Depot
	DestDepotID   uint `gorm:"index;not null"`
	DestDepot     Depot `gorm:"foreignKey:DestDepotID"`
	ItemID        uint  `gorm:"index;not null"`
	Item          Item
	Quantity      int64          `gorm:"not null"`
	Status        TransferStatus `gorm:"size:12;not null;default:'PENDING';index"`
	RequestedByID uint           `gorm:"index;not null"`
	RequestedBy   User           `gorm:"foreignKey:RequestedByID"`
	DecidedByID   *uint
	DecidedAt     *time.Time
	RejectReason  string `gorm:"size:255"`
	PairID        string `gorm:"size:36"` // ledger pair written on execution
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
