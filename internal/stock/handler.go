package stock

import (
	"fmt"
	"time"

	"drims-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// GET /api/stock/depots/:depot_id/items/:item_id?as_of=2026-01-31T00:00:00Z
func BalanceHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}
		depotID, err := paramID(c, "depot_id")
		if err != nil {
			return err
		}
		itemID, err := paramID(c, "item_id")
		if err != nil {
			return err
		}

		var asOf *time.Time
		if raw := c.Query("as_of"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "as_of must be RFC3339")
			}
			asOf = &t
		}

		bal, err := svc.Balance(c.UserContext(), p, depotID, itemID, asOf)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"depot_id": depotID, "item_id": itemID, "quantity": bal})
	}
}

// GET /api/stock/overall
func OverallHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}
		rows, err := svc.OverallBalances(c.UserContext(), p)
		if err != nil {
			return err
		}
		return c.JSON(rows)
	}
}

// GET /api/stock/depots/:depot_id
func DepotBalancesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}
		depotID, err := paramID(c, "depot_id")
		if err != nil {
			return err
		}
		rows, err := svc.DepotBalances(c.UserContext(), p, depotID)
		if err != nil {
			return err
		}
		return c.JSON(rows)
	}
}

// GET /api/stock/by-category
func ByCategoryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}
		rows, err := svc.BalancesByCategory(c.UserContext(), p)
		if err != nil {
			return err
		}
		return c.JSON(rows)
	}
}

// GET /api/stock/low?threshold=10
func LowStockHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}
		var threshold *int64
		if raw := c.Query("threshold"); raw != "" {
			var t int64
			if _, err := fmt.Sscan(raw, &t); err != nil || t <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "threshold must be a positive integer")
			}
			threshold = &t
		}
		rows, err := svc.LowStock(c.UserContext(), p, threshold)
		if err != nil {
			return err
		}
		return c.JSON(rows)
	}
}

// GET /api/stock/expiring?days=30
func ExpiringHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}
		days := 30
		if raw := c.Query("days"); raw != "" {
			if _, err := fmt.Sscan(raw, &days); err != nil || days <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "days must be a positive integer")
			}
		}
		rows, err := svc.ExpiringWithin(c.UserContext(), p, time.Duration(days)*24*time.Hour)
		if err != nil {
			return err
		}
		return c.JSON(rows)
	}
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	var id uint
	if _, err := fmt.Sscan(c.Params(name), &id); err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" is invalid")
	}
	return id, nil
}
