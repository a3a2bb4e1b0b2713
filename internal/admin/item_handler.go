package admin

import (
	"fmt"
	"strings"

	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ItemResponse struct {
	ID             uint   `json:"id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Unit           string `json:"unit"`
	Barcode        string `json:"barcode,omitempty"`
	ShelfLifeClass string `json:"shelf_life_class,omitempty"`
	MinQty         int64  `json:"min_qty"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"created_at"`
}

type CreateItemRequest struct {
	Name           string `json:"name"`
	Category       string `json:"category"`
	Unit           string `json:"unit"`
	Barcode        string `json:"barcode"`
	ShelfLifeClass string `json:"shelf_life_class"`
	MinQty         int64  `json:"min_qty"`
	Notes          string `json:"notes"`
}

type UpdateItemRequest struct {
	Name           *string `json:"name"`
	Category       *string `json:"category"`
	Unit           *string `json:"unit"`
	Barcode        *string `json:"barcode"`
	ShelfLifeClass *string `json:"shelf_life_class"`
	MinQty         *int64  `json:"min_qty"`
	Notes          *string `json:"notes"`
}

// newSKU derives a short unique code from the category and a uuid fragment,
// e.g. "FOO-9F86D081".
func newSKU(category string) string {
	prefix := "GEN"
	cat := strings.ToUpper(strings.TrimSpace(category))
	if len(cat) >= 3 {
		prefix = cat[:3]
	} else if cat != "" {
		prefix = cat
	}
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s", prefix, frag)
}

func CreateItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Unit = strings.TrimSpace(body.Unit)
		if body.Name == "" || body.Unit == "" {
			return fiber.NewError(fiber.StatusBadRequest, "item name and unit are required")
		}
		if body.MinQty < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "min_qty cannot be negative")
		}

		// point the caller at the existing record instead of just refusing
		var exist models.Item
		if err := database.DB.Where("LOWER(name) = LOWER(?)", body.Name).First(&exist).Error; err == nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":         "an item with this name already exists",
				"existing_id":   exist.ID,
				"existing_item": toItemResponse(&exist),
			})
		}

		item := models.Item{
			SKU:            newSKU(body.Category),
			Name:           body.Name,
			Category:       strings.TrimSpace(body.Category),
			Unit:           body.Unit,
			Barcode:        strings.TrimSpace(body.Barcode),
			ShelfLifeClass: strings.ToUpper(strings.TrimSpace(body.ShelfLifeClass)),
			MinQty:         body.MinQty,
			Notes:          body.Notes,
		}
		if err := database.DB.Create(&item).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "item could not be created")
		}

		return c.Status(fiber.StatusCreated).JSON(toItemResponse(&item))
	}
}

func ListItemsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Item{})
		if cat := c.Query("category"); cat != "" {
			dbq = dbq.Where("category = ?", cat)
		}
		if q := c.Query("q"); q != "" {
			dbq = dbq.Where("LOWER(name) LIKE LOWER(?)", "%"+q+"%")
		}

		var items []models.Item
		if err := dbq.Order("name ASC").Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "items could not be listed")
		}

		res := make([]ItemResponse, 0, len(items))
		for i := range items {
			res = append(res, *toItemResponse(&items[i]))
		}
		return c.JSON(res)
	}
}

func GetItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var item models.Item
		if err := database.DB.First(&item, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "item not found")
		}
		return c.JSON(toItemResponse(&item))
	}
}

// UpdateItemHandler allows MinQty and Notes edits at any time. Identity fields
// (name, unit, category, barcode, shelf life) are frozen once the item appears
// in a ledger transaction, so historical entries keep their meaning.
func UpdateItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var item models.Item
		if err := database.DB.First(&item, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "item not found")
		}

		var body UpdateItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		identityEdit := body.Name != nil || body.Category != nil || body.Unit != nil ||
			body.Barcode != nil || body.ShelfLifeClass != nil
		if identityEdit {
			var count int64
			if err := database.DB.Model(&models.Transaction{}).
				Where("item_id = ?", item.ID).Count(&count).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "item could not be checked")
			}
			if count > 0 {
				return fiber.NewError(fiber.StatusConflict, "item is referenced by ledger entries; only min_qty and notes may change")
			}
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "item name is required")
			}
			item.Name = name
		}
		if body.Category != nil {
			item.Category = strings.TrimSpace(*body.Category)
		}
		if body.Unit != nil {
			unit := strings.TrimSpace(*body.Unit)
			if unit == "" {
				return fiber.NewError(fiber.StatusBadRequest, "item unit is required")
			}
			item.Unit = unit
		}
		if body.Barcode != nil {
			item.Barcode = strings.TrimSpace(*body.Barcode)
		}
		if body.ShelfLifeClass != nil {
			item.ShelfLifeClass = strings.ToUpper(strings.TrimSpace(*body.ShelfLifeClass))
		}
		if body.MinQty != nil {
			if *body.MinQty < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "min_qty cannot be negative")
			}
			item.MinQty = *body.MinQty
		}
		if body.Notes != nil {
			item.Notes = *body.Notes
		}

		if err := database.DB.Save(&item).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "item could not be updated")
		}
		return c.JSON(toItemResponse(&item))
	}
}

func DeleteItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var count int64
		if err := database.DB.Model(&models.Transaction{}).
			Where("item_id = ?", id).Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "item could not be checked")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "item is referenced by ledger entries and cannot be deleted")
		}

		if err := database.DB.Delete(&models.Item{}, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "item could not be deleted")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func toItemResponse(it *models.Item) *ItemResponse {
	return &ItemResponse{
		ID:             it.ID,
		SKU:            it.SKU,
		Name:           it.Name,
		Category:       it.Category,
		Unit:           it.Unit,
		Barcode:        it.Barcode,
		ShelfLifeClass: it.ShelfLifeClass,
		MinQty:         it.MinQty,
		Notes:          it.Notes,
		CreatedAt:      it.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
