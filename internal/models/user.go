package models

import "time"

type UserRole string

const (
	RoleAdmin            UserRole = "ADMIN"
	RoleLogisticsManager UserRole = "LOGISTICS_MANAGER"
	RoleLogisticsOfficer UserRole = "LOGISTICS_OFFICER"
	RoleWarehouseStaff   UserRole = "WAREHOUSE_STAFF"
	RoleFieldPersonnel   UserRole = "FIELD_PERSONNEL"
	RoleExecutive        UserRole = "EXECUTIVE"
	RoleAuditor          UserRole = "AUDITOR"
)

type User struct {
	ID           uint `gorm:"primaryKey"`
	DepotID      *uint // home depot; admins may be unassigned
	Depot        *Depot
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:24;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
