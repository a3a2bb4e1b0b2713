package transfer

import (
	"fmt"

	"drims-backend/internal/audit"
	"drims-backend/internal/auth"
	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type RequestTransferBody struct {
	SourceDepotID uint   `json:"source_depot_id"`
	DestDepotID   uint   `json:"dest_depot_id"`
	ItemID        uint   `json:"item_id"`
	Quantity      int64  `json:"quantity"`
	Note          string `json:"note"`
}

type DecideBody struct {
	Decision string `json:"decision"` // "APPROVED" or "REJECTED"
	Reason   string `json:"reason"`
}

type TransferRequestResponse struct {
	ID            uint   `json:"id"`
	SourceDepotID uint   `json:"source_depot_id"`
	DestDepotID   uint   `json:"dest_depot_id"`
	ItemID        uint   `json:"item_id"`
	Quantity      int64  `json:"quantity"`
	Status        string `json:"status"`
	RejectReason  string `json:"reject_reason,omitempty"`
	PairID        string `json:"pair_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// POST /api/transfers
// MAIN-sourced transfers execute immediately; others come back as a PENDING
// request.
func RequestHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RequestTransferBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		out, err := svc.Request(c.UserContext(), p, body.SourceDepotID, body.DestDepotID, body.ItemID, body.Quantity, body.Note)
		if err != nil {
			return err
		}

		if out.Executed {
			writeTransferAudit(p, body.SourceDepotID, 0, models.AuditActionCreate,
				fmt.Sprintf("immediate transfer executed, pair %s", out.PairID))
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{
				"executed": true,
				"pair_id":  out.PairID,
			})
		}

		writeTransferAudit(p, body.SourceDepotID, out.Request.ID, models.AuditActionCreate,
			fmt.Sprintf("transfer request #%d pending MAIN approval", out.Request.ID))
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"executed": false,
			"request":  toResponse(out.Request),
		})
	}
}

// POST /api/transfers/:id/decision
func DecideHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var requestID uint
		if _, err := fmt.Sscan(c.Params("id"), &requestID); err != nil || requestID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "request id is invalid")
		}

		var body DecideBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var approve bool
		switch body.Decision {
		case string(models.TransferApproved):
			approve = true
		case string(models.TransferRejected):
			approve = false
		default:
			return fiber.NewError(fiber.StatusBadRequest, "decision must be APPROVED or REJECTED")
		}

		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		req, err := svc.Decide(c.UserContext(), p, requestID, approve, body.Reason)
		if err != nil {
			return err
		}

		writeTransferAudit(p, req.SourceDepotID, req.ID, models.AuditActionTransition,
			fmt.Sprintf("transfer request #%d decided: %s", req.ID, req.Status))
		return c.JSON(toResponse(req))
	}
}

// GET /api/transfers?status=PENDING&depot_id=
func ListHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.TransferRequest{})

		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}
		if depotIDStr := c.Query("depot_id"); depotIDStr != "" {
			var did uint
			if _, err := fmt.Sscan(depotIDStr, &did); err != nil || did == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "depot_id is invalid")
			}
			dbq = dbq.Where("source_depot_id = ? OR dest_depot_id = ?", did, did)
		}

		var reqs []models.TransferRequest
		if err := dbq.Order("created_at DESC").Limit(200).Find(&reqs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "transfer requests could not be listed")
		}

		resp := make([]TransferRequestResponse, 0, len(reqs))
		for i := range reqs {
			resp = append(resp, *toResponse(&reqs[i]))
		}
		return c.JSON(resp)
	}
}

func toResponse(req *models.TransferRequest) *TransferRequestResponse {
	return &TransferRequestResponse{
		ID:            req.ID,
		SourceDepotID: req.SourceDepotID,
		DestDepotID:   req.DestDepotID,
		ItemID:        req.ItemID,
		Quantity:      req.Quantity,
		Status:        string(req.Status),
		RejectReason:  req.RejectReason,
		PairID:        req.PairID,
		CreatedAt:     req.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func writeTransferAudit(p auth.Principal, depotID, entityID uint, action models.AuditAction, description string) {
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
		EntityType:  "transfer_request",
		EntityID:    entityID,
		Action:      action,
		Description: description,
	})
}
