package distribution

import (
	"fmt"

	"drims-backend/internal/audit"
	"drims-backend/internal/auth"
	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateBody struct {
	NeedsListID uint `json:"needs_list_id"`
}

type RejectBody struct {
	Reason string `json:"reason"`
}

type AllocationResponse struct {
	ID            uint   `json:"id"`
	SourceDepotID uint   `json:"source_depot_id"`
	SourceDepot   string `json:"source_depot"`
	ItemID        uint   `json:"item_id"`
	ItemName      string `json:"item_name"`
	Quantity      int64  `json:"quantity"`
	PairID        string `json:"pair_id,omitempty"`
}

type PackageResponse struct {
	ID           uint                 `json:"id"`
	NeedsListID  uint                 `json:"needs_list_id"`
	Status       string               `json:"status"`
	RejectReason string               `json:"reject_reason,omitempty"`
	Allocations  []AllocationResponse `json:"allocations"`
	CreatedAt    string               `json:"created_at"`
}

// POST /api/distribution-packages
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

		pkg, err := svc.Create(c.UserContext(), p, body.NeedsListID)
		if err != nil {
			return err
		}

		writePackageAudit(p, pkg, models.AuditActionCreate,
			fmt.Sprintf("distribution package #%d planned for needs list #%d", pkg.ID, pkg.NeedsListID))
		return c.Status(fiber.StatusCreated).JSON(toResponse(pkg))
	}
}

// POST /api/distribution-packages/:id/submit
func SubmitHandler(svc *Service) fiber.Handler {
	return transitionHandler("submitted for review", func(c *fiber.Ctx, p auth.Principal, id uint) (*models.DistributionPackage, error) {
		return svc.SubmitForReview(c.UserContext(), p, id)
	})
}

// POST /api/distribution-packages/:id/approve
func ApproveHandler(svc *Service) fiber.Handler {
	return transitionHandler("approved", func(c *fiber.Ctx, p auth.Principal, id uint) (*models.DistributionPackage, error) {
		return svc.Approve(c.UserContext(), p, id)
	})
}

// POST /api/distribution-packages/:id/reject
func RejectHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pkgID, err := paramID(c)
		if err != nil {
			return err
		}
		var body RejectBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if body.Reason == "" {
			return fiber.NewError(fiber.StatusBadRequest, "reason is required")
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		pkg, err := svc.Reject(c.UserContext(), p, pkgID, body.Reason)
		if err != nil {
			return err
		}

		writePackageAudit(p, pkg, models.AuditActionTransition,
			fmt.Sprintf("distribution package #%d rejected: %s", pkg.ID, body.Reason))
		return c.JSON(toResponse(pkg))
	}
}

// POST /api/distribution-packages/:id/dispatch
func DispatchHandler(svc *Service) fiber.Handler {
	return transitionHandler("dispatched", func(c *fiber.Ctx, p auth.Principal, id uint) (*models.DistributionPackage, error) {
		return svc.Dispatch(c.UserContext(), p, id)
	})
}

// POST /api/distribution-packages/:id/receive
func ReceiveHandler(svc *Service) fiber.Handler {
	return transitionHandler("received", func(c *fiber.Ctx, p auth.Principal, id uint) (*models.DistributionPackage, error) {
		return svc.Receive(c.UserContext(), p, id)
	})
}

// GET /api/distribution-packages?status=&needs_list_id=
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.DistributionPackage{}).
			Preload("Allocations").Preload("Allocations.Item").Preload("Allocations.SourceDepot")

		if status := c.Query("status"); status != "" {
			dbq = dbq.Where("status = ?", status)
		}
		if nlStr := c.Query("needs_list_id"); nlStr != "" {
			var nlID uint
			if _, err := fmt.Sscan(nlStr, &nlID); err != nil || nlID == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "needs_list_id is invalid")
			}
			dbq = dbq.Where("needs_list_id = ?", nlID)
		}

		var pkgs []models.DistributionPackage
		if err := dbq.Order("created_at DESC").Limit(200).Find(&pkgs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "distribution packages could not be listed")
		}

		resp := make([]PackageResponse, 0, len(pkgs))
		for i := range pkgs {
			resp = append(resp, *toResponse(&pkgs[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/distribution-packages/:id
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pkgID, err := paramID(c)
		if err != nil {
			return err
		}
		pkg, err := svc.load(c.UserContext(), pkgID)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(pkg))
	}
}

func transitionHandler(verb string, fn func(*fiber.Ctx, auth.Principal, uint) (*models.DistributionPackage, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pkgID, err := paramID(c)
		if err != nil {
			return err
		}
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}
		pkg, err := fn(c, p, pkgID)
		if err != nil {
			return err
		}
		writePackageAudit(p, pkg, models.AuditActionTransition,
			fmt.Sprintf("distribution package #%d %s", pkg.ID, verb))
		return c.JSON(toResponse(pkg))
	}
}

func paramID(c *fiber.Ctx) (uint, error) {
	var id uint
	if _, err := fmt.Sscan(c.Params("id"), &id); err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "distribution package id is invalid")
	}
	return id, nil
}

func toResponse(pkg *models.DistributionPackage) *PackageResponse {
	resp := &PackageResponse{
		ID:           pkg.ID,
		NeedsListID:  pkg.NeedsListID,
		Status:       string(pkg.Status),
		RejectReason: pkg.RejectReason,
		CreatedAt:    pkg.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	for _, a := range pkg.Allocations {
		resp.Allocations = append(resp.Allocations, AllocationResponse{
			ID:            a.ID,
			SourceDepotID: a.SourceDepotID,
			SourceDepot:   a.SourceDepot.Name,
			ItemID:        a.ItemID,
			ItemName:      a.Item.Name,
			Quantity:      a.Quantity,
			PairID:        a.PairID,
		})
	}
	return resp
}

func writePackageAudit(p auth.Principal, pkg *models.DistributionPackage, action models.AuditAction, description string) {
	var user models.User
	userName := ""
	if err := database.DB.First(&user, p.UserID).Error; err == nil {
		userName = user.Name
	}
	_ = audit.WriteLog(audit.LogOptions{
		UserID:      p.UserID,
		UserName:    userName,
		EntityType:  "distribution_package",
		EntityID:    pkg.ID,
		Action:      action,
		Description: description,
	})
}
