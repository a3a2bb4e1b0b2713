package admin

import (
	"strings"

	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type DepotResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Tier      string `json:"tier"`
	Parish    string `json:"parish"`
	CreatedAt string `json:"created_at"`
}

type CreateDepotRequest struct {
	Name   string `json:"name"`
	Tier   string `json:"tier"`
	Parish string `json:"parish"`
}

type UpdateDepotRequest struct {
	Name   *string `json:"name"`
	Tier   *string `json:"tier"`
	Parish *string `json:"parish"`
}

func validTier(t models.HubTier) bool {
	switch t {
	case models.TierMain, models.TierSub, models.TierAgency:
		return true
	}
	return false
}

func CreateDepotHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateDepotRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "depot name is required")
		}
		tier := models.HubTier(strings.ToUpper(strings.TrimSpace(body.Tier)))
		if !validTier(tier) {
			return fiber.NewError(fiber.StatusBadRequest, "tier must be MAIN, SUB or AGENCY")
		}

		var exist models.Depot
		if err := database.DB.Where("name = ?", body.Name).First(&exist).Error; err == nil {
			return fiber.NewError(fiber.StatusBadRequest, "a depot with this name already exists")
		}

		depot := models.Depot{
			Name:   body.Name,
			Tier:   tier,
			Parish: strings.TrimSpace(body.Parish),
		}
		if err := database.DB.Create(&depot).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "depot could not be created")
		}

		return c.Status(fiber.StatusCreated).JSON(toDepotResponse(&depot))
	}
}

func ListDepotsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Depot{})
		if tier := c.Query("tier"); tier != "" {
			dbq = dbq.Where("tier = ?", strings.ToUpper(tier))
		}

		var depots []models.Depot
		if err := dbq.Order("name ASC").Find(&depots).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "depots could not be listed")
		}

		res := make([]DepotResponse, 0, len(depots))
		for i := range depots {
			res = append(res, *toDepotResponse(&depots[i]))
		}
		return c.JSON(res)
	}
}

func GetDepotHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var depot models.Depot
		if err := database.DB.First(&depot, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "depot not found")
		}
		return c.JSON(toDepotResponse(&depot))
	}
}

func UpdateDepotHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var depot models.Depot
		if err := database.DB.First(&depot, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "depot not found")
		}

		var body UpdateDepotRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "depot name is required")
			}
			depot.Name = name
		}
		if body.Tier != nil {
			tier := models.HubTier(strings.ToUpper(strings.TrimSpace(*body.Tier)))
			if !validTier(tier) {
				return fiber.NewError(fiber.StatusBadRequest, "tier must be MAIN, SUB or AGENCY")
			}
			depot.Tier = tier
		}
		if body.Parish != nil {
			depot.Parish = strings.TrimSpace(*body.Parish)
		}

		if err := database.DB.Save(&depot).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "depot could not be updated")
		}
		return c.JSON(toDepotResponse(&depot))
	}
}

// DeleteDepotHandler refuses to remove a depot that still carries ledger
// entries; balances would silently disappear otherwise.
func DeleteDepotHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var count int64
		if err := database.DB.Model(&models.Transaction{}).
			Where("depot_id = ?", id).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "depot could not be checked")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "depot has ledger entries and cannot be deleted")
		}

		if err := database.DB.Delete(&models.Depot{}, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "depot could not be deleted")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func toDepotResponse(d *models.Depot) *DepotResponse {
	return &DepotResponse{
		ID:        d.ID,
		Name:      d.Name,
		Tier:      string(d.Tier),
		Parish:    d.Parish,
		CreatedAt: d.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
