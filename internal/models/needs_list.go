package models

import "time"

type NeedsListStatus string

const (
	NeedsListDraft      NeedsListStatus = "DRAFT"
	NeedsListSubmitted  NeedsListStatus = "SUBMITTED"
	NeedsListApproved   NeedsListStatus = "APPROVED"
	NeedsListRejected   NeedsListStatus = "REJECTED"
	NeedsListDispatched NeedsListStatus = "DISPATCHED"
	NeedsListReceived   NeedsListStatus = "RECEIVED"
	NeedsListClosed     NeedsListStatus = "CLOSED"
)

// NeedsList: an AGENCY/SUB hub's request for items from MAIN hubs.
type NeedsList struct {
	ID        uint `gorm:"primaryKey"`
	DepotID   uint `gorm:"index;not null"` // requesting depot
	Depot     Depot
	EventID   *uint `gorm:"index"`
	Event     *DisasterEvent
	Status    NeedsListStatus `gorm:"size:12;not null;default:'DRAFT';index"`
	Note      string          `gorm:"size:500"`
	CreatedByID    uint `gorm:"index;not null"`
	ReviewedByID   *uint
	ReviewedAt     *time.Time
	DispatchedByID *uint
	DispatchedAt   *time.Time
	ReceivedByID   *uint
	ReceivedAt     *time.Time
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Items       []NeedsListItem       `gorm:"foreignKey:NeedsListID;constraint:OnDelete:CASCADE"`
	Allocations []NeedsListAllocation `gorm:"foreignKey:NeedsListID;constraint:OnDelete:CASCADE"`
}

// NeedsListItem: one requested line; ApprovedQty is set at review
// (0 <= approved <= requested, partial approval per line is allowed).
type NeedsListItem struct {
	ID           uint `gorm:"primaryKey"`
	NeedsListID  uint `gorm:"index;not null"`
	ItemID       uint `gorm:"index;not null"`
	Item         Item
	RequestedQty int64 `gorm:"not null"`
	ApprovedQty  int64 `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NeedsListAllocation: a fulfilment line written at dispatch time, recording
// which source depot covered which quantity and the ledger pair it produced.
type NeedsListAllocation struct {
	ID            uint `gorm:"primaryKey"`
	NeedsListID   uint `gorm:"index;not null"`
	ItemID        uint `gorm:"index;not null"`
	SourceDepotID uint `gorm:"index;not null"`
	SourceDepot   Depot `gorm:"foreignKey:SourceDepotID"`
	Quantity      int64 `gorm:"not null"`
	PairID        string `gorm:"size:36;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
