package needslist

import (
	"fmt"

	"drims-backend/internal/audit"
	"drims-backend/internal/auth"
	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type LineBody struct {
	ItemID   uint  `json:"item_id"`
	Quantity int64 `json:"quantity"`
}

type CreateBody struct {
	DepotID uint       `json:"depot_id"`
	EventID *uint      `json:"event_id"`
	Note    string     `json:"note"`
	Lines   []LineBody `json:"lines"`
}

type ReviewBody struct {
	Decisions []struct {
		ItemID      uint  `json:"item_id"`
		ApprovedQty int64 `json:"approved_qty"`
	} `json:"decisions"`
}

type DispatchBody struct {
	Allocations []struct {
		ItemID        uint  `json:"item_id"`
		SourceDepotID uint  `json:"source_depot_id"`
		Quantity      int64 `json:"quantity"`
	} `json:"allocations"`
}

type AmendBody struct {
	AllocationID uint   `json:"allocation_id"`
	NewQuantity  int64  `json:"new_quantity"`
	Reason       string `json:"reason"`
}

type LineResponse struct {
	ItemID       uint   `json:"item_id"`
	ItemName     string `json:"item_name"`
	RequestedQty int64  `json:"requested_qty"`
	ApprovedQty  int64  `json:"approved_qty"`
}

type AllocationResponse struct {
	ID            uint   `json:"id"`
	ItemID        uint   `json:"item_id"`
	SourceDepotID uint   `json:"source_depot_id"`
	Quantity      int64  `json:"quantity"`
	PairID        string `json:"pair_id"`
}

type NeedsListResponse struct {
	ID          uint                 `json:"id"`
	DepotID     uint                 `json:"depot_id"`
	DepotName   string               `json:"depot_name"`
	Status      string               `json:"status"`
	Note        string               `json:"note"`
	Lines       []LineResponse       `json:"lines"`
	Allocations []AllocationResponse `json:"allocations,omitempty"`
	CreatedAt   string               `json:"created_at"`
}

// POST /api/needs-lists
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		lines := make([]Line, 0, len(body.Lines))
		for _, l := range body.Lines {
			lines = append(lines, Line{ItemID: l.ItemID, Quantity: l.Quantity})
		}

		list, err := svc.CreateDraft(c.UserContext(), p, body.DepotID, body.EventID, body.Note, lines)
		if err != nil {
			return err
		}

		writeListAudit(p, list, models.AuditActionCreate, fmt.Sprintf("needs list #%d drafted", list.ID))
		return c.Status(fiber.StatusCreated).JSON(toResponse(list))
	}
}

// PUT /api/needs-lists/:id/lines
func SetLinesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		listID, err := paramID(c)
		if err != nil {
			return err
		}
		var body struct {
			Lines []LineBody `json:"lines"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		lines := make([]Line, 0, len(body.Lines))
		for _, l := range body.Lines {
			lines = append(lines, Line{ItemID: l.ItemID, Quantity: l.Quantity})
		}

		list, err := svc.SetLines(c.UserContext(), p, listID, lines)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(list))
	}
}

// POST /api/needs-lists/:id/submit
func SubmitHandler(svc *Service) fiber.Handler {
	return transitionHandler(svc, "submitted", func(svc *Service, c *fiber.Ctx, p auth.Principal, id uint) (*models.NeedsList, error) {
		return svc.Submit(c.UserContext(), p, id)
	})
}

// POST /api/needs-lists/:id/review
func ReviewHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		listID, err := paramID(c)
		if err != nil {
			return err
		}
		var body ReviewBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		decisions := make([]ItemDecision, 0, len(body.Decisions))
		for _, d := range body.Decisions {
			decisions = append(decisions, ItemDecision{ItemID: d.ItemID, ApprovedQty: d.ApprovedQty})
		}

		list, err := svc.Review(c.UserContext(), p, listID, decisions)
		if err != nil {
			return err
		}

		writeListAudit(p, list, models.AuditActionTransition, fmt.Sprintf("needs list #%d reviewed: %s", list.ID, list.Status))
		return c.JSON(toResponse(list))
	}
}

// POST /api/needs-lists/:id/dispatch
func DispatchHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		listID, err := paramID(c)
		if err != nil {
			return err
		}
		var body DispatchBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		allocations := make([]Allocation, 0, len(body.Allocations))
		for _, a := range body.Allocations {
			allocations = append(allocations, Allocation{
				ItemID:        a.ItemID,
				SourceDepotID: a.SourceDepotID,
				Quantity:      a.Quantity,
			})
		}

		list, err := svc.Dispatch(c.UserContext(), p, listID, allocations)
		if err != nil {
			return err
		}

		writeListAudit(p, list, models.AuditActionTransition, fmt.Sprintf("needs list #%d dispatched", list.ID))
		return c.JSON(toResponse(list))
	}
}

// POST /api/needs-lists/:id/receive
func ReceiveHandler(svc *Service) fiber.Handler {
	return transitionHandler(svc, "received", func(svc *Service, c *fiber.Ctx, p auth.Principal, id uint) (*models.NeedsList, error) {
		return svc.Receive(c.UserContext(), p, id)
	})
}

// POST /api/needs-lists/:id/close
func CloseHandler(svc *Service) fiber.Handler {
	return transitionHandler(svc, "closed", func(svc *Service, c *fiber.Ctx, p auth.Principal, id uint) (*models.NeedsList, error) {
		return svc.Close(c.UserContext(), p, id)
	})
}

// POST /api/needs-lists/:id/amend
func AmendHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		listID, err := paramID(c)
		if err != nil {
			return err
		}
		var body AmendBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		entry, err := svc.Amend(c.UserContext(), p, listID, body.AllocationID, body.NewQuantity, body.Reason)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"edit_session_id": entry.EditSessionID,
			"field":           entry.Field,
			"old_value":       entry.OldValue,
			"new_value":       entry.NewValue,
			"pair_id":         entry.PairID,
		})
	}
}

// GET /api/needs-lists?status=&depot_id=
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.NeedsList{}).Preload("Items").Preload("Items.Item").Preload("Depot")

		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}
		if depotIDStr := c.Query("depot_id"); depotIDStr != "" {
			var did uint
			if _, err := fmt.Sscan(depotIDStr, &did); err != nil || did == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "depot_id is invalid")
			}
			dbq = dbq.Where("depot_id = ?", did)
		}

		var lists []models.NeedsList
		if err := dbq.Order("created_at DESC").Limit(200).Find(&lists).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "needs lists could not be listed")
		}

		resp := make([]NeedsListResponse, 0, len(lists))
		for i := range lists {
			resp = append(resp, *toResponse(&lists[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/needs-lists/:id
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		listID, err := paramID(c)
		if err != nil {
			return err
		}
		list, err := svc.load(c.UserContext(), listID)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(list))
	}
}

func transitionHandler(svc *Service, verb string, fn func(*Service, *fiber.Ctx, auth.Principal, uint) (*models.NeedsList, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		listID, err := paramID(c)
		if err != nil {
			return err
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}
		list, err := fn(svc, c, p, listID)
		if err != nil {
			return err
		}
		writeListAudit(p, list, models.AuditActionTransition, fmt.Sprintf("needs list #%d %s", list.ID, verb))
		return c.JSON(toResponse(list))
	}
}

func paramID(c *fiber.Ctx) (uint, error) {
	var id uint
	if _, err := fmt.Sscan(c.Params("id"), &id); err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "needs list id is invalid")
	}
	return id, nil
}

func toResponse(list *models.NeedsList) *NeedsListResponse {
	resp := &NeedsListResponse{
		ID:        list.ID,
		DepotID:   list.DepotID,
		DepotName: list.Depot.Name,
		Status:    string(list.Status),
		Note:      list.Note,
		CreatedAt: list.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	for _, it := range list.Items {
		resp.Lines = append(resp.Lines, LineResponse{
			ItemID:       it.ItemID,
			ItemName:     it.Item.Name,
			RequestedQty: it.RequestedQty,
			ApprovedQty:  it.ApprovedQty,
		})
	}
	for _, a := range list.Allocations {
		resp.Allocations = append(resp.Allocations, AllocationResponse{
			ID:            a.ID,
			ItemID:        a.ItemID,
			SourceDepotID: a.SourceDepotID,
			Quantity:      a.Quantity,
			PairID:        a.PairID,
		})
	}
	return resp
}

func writeListAudit(p auth.Principal, list *models.NeedsList, action models.AuditAction, description string) {
	var user models.User
	userName := ""
	if err := database.DB.First(&user, p.UserID).Error; err == nil {
		userName = user.Name
	}
	depotID := list.DepotID
	_ = audit.WriteLog(audit.LogOptions{
		DepotID:     &depotID,
		UserID:      p.UserID,
		UserName:    userName,
		EntityType:  "needs_list",
		EntityID:    list.ID,
		Action:      action,
		Description: description,
	})
}
