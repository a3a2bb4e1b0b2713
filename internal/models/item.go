package models

import "time"

// Item: a relief supply line (Food, Water, Hygiene, Medical...).
// Once referenced by a ledger transaction an item is treated as immutable.
type Item struct {
	ID             uint   `gorm:"primaryKey"`
	SKU            string `gorm:"size:64;uniqueIndex;not null"` // auto-generated
	Name           string `gorm:"size:200;not null;index"`
	Category       string `gorm:"size:120;index"`
	Unit           string `gorm:"size:32;not null"` // pcs, kg, L...
	Barcode        string `gorm:"size:64;index"`    // optional
	ShelfLifeClass string `gorm:"size:32"`          // optional, e.g. PERISHABLE, LONG_LIFE
	MinQty         int64  `gorm:"not null;default:0"` // low-stock threshold
	Notes          string `gorm:"size:500"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
