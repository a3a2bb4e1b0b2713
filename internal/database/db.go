package database

import (
	"drims-backend/internal/config"
	"drims-backend/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config, log zerolog.Logger) error {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return err
	}

	if err := Migrate(DB); err != nil {
		return err
	}

	if cfg.SeedDepots {
		if err := seedDepots(DB, log); err != nil {
			return err
		}
	}

	log.Info().Msg("database connected, migration complete")
	return nil
}

// Migrate runs AutoMigrate for every model. Shared with the test harness.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Depot{},
		&models.User{},
		&models.Item{},
		&models.Donor{},
		&models.Beneficiary{},
		&models.DisasterEvent{},
		&models.Transaction{},
		&models.TransferRequest{},
		&models.NeedsList{},
		&models.NeedsListItem{},
		&models.NeedsListAllocation{},
		&models.DistributionPackage{},
		&models.DistributionAllocation{},
		&models.FulfilmentEditLog{},
		&models.AuditLog{},
	)
}

// seedDepots creates the initial parish depot network once.
func seedDepots(db *gorm.DB, log zerolog.Logger) error {
	var count int64
	if err := db.Model(&models.Depot{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	depots := []models.Depot{
		{Name: "Kingston & St. Andrew Depot", Tier: models.TierMain, Parish: "Kingston & St. Andrew"},
		{Name: "St. Catherine Depot", Tier: models.TierMain, Parish: "St. Catherine"},
		{Name: "St. James Depot", Tier: models.TierSub, Parish: "St. James"},
		{Name: "Clarendon Depot", Tier: models.TierSub, Parish: "Clarendon"},
	}
	if err := db.Create(&depots).Error; err != nil {
		return err
	}
	log.Info().Int("depots", len(depots)).Msg("seeded parish depot network")
	return nil
}
