package ledger

import (
	"fmt"
	"strings"
	"time"

	"drims-backend/internal/audit"
	"drims-backend/internal/auth"
	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type DonationRequest struct {
	DepotID    uint   `json:"depot_id"`
	ItemID     uint   `json:"item_id"`
	Quantity   int64  `json:"quantity"`
	ExpiryDate string `json:"expiry_date"` // "2026-03-01", optional
	DonorName  string `json:"donor_name"`  // find-or-create, optional
	EventID    *uint  `json:"event_id"`
	Note       string `json:"note"`
}

type DistributionOutRequest struct {
	DepotID         uint   `json:"depot_id"`
	ItemID          uint   `json:"item_id"`
	Quantity        int64  `json:"quantity"`
	BeneficiaryName string `json:"beneficiary_name"` // find-or-create, optional
	Parish          string `json:"parish"`
	EventID         *uint  `json:"event_id"`
	Note            string `json:"note"`
}

type TransactionResponse struct {
	ID         uint   `json:"id"`
	PairID     string `json:"pair_id"`
	ItemID     uint   `json:"item_id"`
	ItemName   string `json:"item_name"`
	DepotID    uint   `json:"depot_id"`
	DepotName  string `json:"depot_name"`
	Quantity   int64  `json:"quantity"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurred_at"`
	ExpiryDate string `json:"expiry_date,omitempty"`
	Note       string `json:"note"`
}

type VoidRequest struct {
	Reason string `json:"reason"`
}

// POST /api/donations
// Intake from an external donor: a single positive entry at the receiving
// depot, the external source account stays implicit.
func CreateDonationHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body DonationRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		mv := Movement{
			ItemID:       body.ItemID,
			Quantity:     body.Quantity,
			DestDepotID:  &body.DepotID,
			EventID:      body.EventID,
			Note:         body.Note,
			RecordedByID: p.UserID,
		}

		if body.ExpiryDate != "" {
			d, err := time.Parse("2006-01-02", body.ExpiryDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "expiry_date must be 'YYYY-MM-DD'")
			}
			mv.ExpiryDate = &d
		}

		if name := strings.TrimSpace(body.DonorName); name != "" {
			donor, err := findOrCreateDonor(name)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "donor could not be recorded")
			}
			mv.DonorID = &donor.ID
		}

		pairID, err := svc.Append(c.UserContext(), mv)
		if err != nil {
			return err
		}

		writeMovementAudit(c, p, body.DepotID, pairID,
			fmt.Sprintf("donation intake: item %d x %d at depot %d", body.ItemID, body.Quantity, body.DepotID))

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"pair_id": pairID})
	}
}

// POST /api/distributions-out
// Hand-out to beneficiaries: a single negative entry, the external sink stays
// implicit. Balance-checked like every other ledger write.
func CreateDistributionOutHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body DistributionOutRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		mv := Movement{
			ItemID:        body.ItemID,
			Quantity:      body.Quantity,
			SourceDepotID: &body.DepotID,
			EventID:       body.EventID,
			Note:          body.Note,
			RecordedByID:  p.UserID,
		}

		if name := strings.TrimSpace(body.BeneficiaryName); name != "" {
			ben, err := findOrCreateBeneficiary(name, body.Parish)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "beneficiary could not be recorded")
			}
			mv.BeneficiaryID = &ben.ID
		}

		pairID, err := svc.Append(c.UserContext(), mv)
		if err != nil {
			return err
		}

		writeMovementAudit(c, p, body.DepotID, pairID,
			fmt.Sprintf("relief distribution: item %d x %d from depot %d", body.ItemID, body.Quantity, body.DepotID))

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"pair_id": pairID})
	}
}

// GET /api/transactions?depot_id=&item_id=&pair_id=&status=
func ListTransactionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Transaction{}).Preload("Item").Preload("Depot")

		if depotIDStr := c.Query("depot_id"); depotIDStr != "" {
			var did uint
			if _, err := fmt.Sscan(depotIDStr, &did); err != nil || did == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "depot_id is invalid")
			}
			dbq = dbq.Where("depot_id = ?", did)
		}
		if itemIDStr := c.Query("item_id"); itemIDStr != "" {
			var iid uint
			if _, err := fmt.Sscan(itemIDStr, &iid); err != nil || iid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "item_id is invalid")
			}
			dbq = dbq.Where("item_id = ?", iid)
		}
		if pairID := c.Query("pair_id"); pairID != "" {
			dbq = dbq.Where("pair_id = ?", pairID)
		}
		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}

		var txns []models.Transaction
		if err := dbq.Order("occurred_at DESC, id DESC").Limit(500).Find(&txns).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "transactions could not be listed")
		}

		resp := make([]TransactionResponse, 0, len(txns))
		for _, t := range txns {
			row := TransactionResponse{
				ID:         t.ID,
				PairID:     t.PairID,
				ItemID:     t.ItemID,
				ItemName:   t.Item.Name,
				DepotID:    t.DepotID,
				DepotName:  t.Depot.Name,
				Quantity:   t.Quantity,
				Status:     string(t.Status),
				OccurredAt: t.OccurredAt.Format("2006-01-02 15:04:05"),
				Note:       t.Note,
			}
			if t.ExpiryDate != nil {
				row.ExpiryDate = t.ExpiryDate.Format("2006-01-02")
			}
			resp = append(resp, row)
		}

		return c.JSON(resp)
	}
}

// POST /api/transactions/:pair_id/void
func VoidPairHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pairID := c.Params("pair_id")
		var body VoidRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if strings.TrimSpace(body.Reason) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "a void reason is required")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		if err := svc.Void(c.UserContext(), pairID, body.Reason, p.UserID); err != nil {
			return err
		}

		var user models.User
		userName := ""
		if err := database.DB.First(&user, p.UserID).Error; err == nil {
			userName = user.Name
		}
		_ = audit.WriteLog(audit.LogOptions{
			UserID:      p.UserID,
			UserName:    userName,
			EntityType:  "transaction",
			Action:      models.AuditActionVoid,
			Description: fmt.Sprintf("voided ledger pair %s: %s", pairID, body.Reason),
			After:       fiber.Map{"pair_id": pairID},
		})

		return c.JSON(fiber.Map{"pair_id": pairID, "status": models.TxnVoid})
	}
}

func findOrCreateDonor(name string) (*models.Donor, error) {
	var donor models.Donor
	err := database.DB.Where("name = ?", name).First(&donor).Error
	if err == nil {
		return &donor, nil
	}
	donor = models.Donor{Name: name}
	if err := database.DB.Create(&donor).Error; err != nil {
		return nil, err
	}
	return &donor, nil
}

func findOrCreateBeneficiary(name, parish string) (*models.Beneficiary, error) {
	var ben models.Beneficiary
	err := database.DB.Where("name = ?", name).First(&ben).Error
	if err == nil {
		return &ben, nil
	}
	ben = models.Beneficiary{Name: name, Parish: parish}
	if err := database.DB.Create(&ben).Error; err != nil {
		return nil, err
	}
	return &ben, nil
}

func writeMovementAudit(c *fiber.Ctx, p auth.Principal, depotID uint, pairID, description string) {
	var user models.User
	userName := ""
	if err := database.DB.First(&user, p.UserID).Error; err == nil {
		userName = user.Name
	}
	var depotPtr *uint
	if depotID != 0 {
		depotPtr = &depotID
	}
	_ = audit.WriteLog(audit.LogOptions{
		DepotID:     depotPtr,
		UserID:      p.UserID,
		UserName:    userName,
		EntityType:  "transaction",
		EntityID:    0,
		Action:      models.AuditActionCreate,
		Description: description,
		After:       fiber.Map{"pair_id": pairID},
	})
}
