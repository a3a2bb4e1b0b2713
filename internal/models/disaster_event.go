package models

import "time"

// DisasterEvent tags transactions for reporting. It has no effect on ledger
// invariants.
type DisasterEvent struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:200;not null;unique"`
	StartDate time.Time `gorm:"not null"`
	EndDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
