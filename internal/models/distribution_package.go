package models

import "time"

type PackageStatus string

const (
	PackageDraft       PackageStatus = "DRAFT"
	PackageUnderReview PackageStatus = "UNDER_REVIEW"
	PackageApproved    PackageStatus = "APPROVED"
	PackageRejected    PackageStatus = "REJECTED"
	PackageDispatched  PackageStatus = "DISPATCHED"
	PackageReceived    PackageStatus = "RECEIVED"
)

// DistributionPackage: a multi-depot fulfilment plan for an approved needs
// list. Allocations are chosen at creation time by the smart-allocation step
// and re-validated against live balances at dispatch.
type DistributionPackage struct {
	ID           uint `gorm:"primaryKey"`
	NeedsListID  uint `gorm:"index;not null"`
	NeedsList    NeedsList
	Status       PackageStatus `gorm:"size:14;not null;default:'DRAFT';index"`
	CreatedByID  uint          `gorm:"index;not null"`
	DecidedByID  *uint
	DecidedAt    *time.Time
	RejectReason string `gorm:"size:255"`
	DispatchedAt *time.Time
	ReceivedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Allocations []DistributionAllocation `gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
}

// DistributionAllocation: one (source depot, item, quantity) slice of the plan.
type DistributionAllocation struct {
	ID            uint `gorm:"primaryKey"`
	PackageID     uint `gorm:"index;not null"`
	SourceDepotID uint `gorm:"index;not null"`
	SourceDepot   Depot `gorm:"foreignKey:SourceDepotID"`
	ItemID        uint  `gorm:"index;not null"`
	Item          Item
	Quantity      int64  `gorm:"not null"`
	PairID        string `gorm:"size:36"` // set at dispatch
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
