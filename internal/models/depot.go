package models

import "time"

type HubTier string

const (
	TierMain   HubTier = "MAIN"
	TierSub    HubTier = "SUB"
	TierAgency HubTier = "AGENCY"
)

// Depot: a physical stock-holding location (parish depot, shelter, agency store).
// Tiers are flat, there is no parent-hub reference.
type Depot struct {
	ID        uint    `gorm:"primaryKey"`
	Name      string  `gorm:"size:120;not null;unique"`
	Tier      HubTier `gorm:"size:10;not null;index"`
	Parish    string  `gorm:"size:120"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
