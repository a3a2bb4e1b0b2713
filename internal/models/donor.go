package models

import "time"

type Donor struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:200;not null;index"`
	Contact   string `gorm:"size:200"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Beneficiary struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:200;not null;index"`
	Contact   string `gorm:"size:200"`
	Parish    string `gorm:"size:120"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
