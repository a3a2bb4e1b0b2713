package dashboard

import (
	"time"

	"drims-backend/internal/auth"
	"drims-backend/internal/database"
	"drims-backend/internal/models"
	"drims-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
)

type SummaryResponse struct {
	TotalItems           int64 `json:"total_items"`
	TotalDepots          int64 `json:"total_depots"`
	TotalUnitsOnHand     int64 `json:"total_units_on_hand"`
	LowStockItems        int   `json:"low_stock_items"`
	ExpiringWithin30Days int   `json:"expiring_within_30_days"`
	PendingTransfers     int64 `json:"pending_transfers"`
	OpenNeedsLists       int64 `json:"open_needs_lists"`
	PackagesInFlight     int64 `json:"packages_in_flight"`
	TransactionsLast24h  int64 `json:"transactions_last_24h"`
}

type RecentTransactionRow struct {
	ID         uint   `json:"id"`
	PairID     string `json:"pair_id"`
	DepotName  string `json:"depot_name"`
	ItemName   string `json:"item_name"`
	Quantity   int64  `json:"quantity"`
	OccurredAt string `json:"occurred_at"`
}

// GET /api/dashboard/summary
func SummaryHandler(stockSvc *stock.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		var res SummaryResponse
		db := database.DB

		if err := db.Model(&models.Item{}).Count(&res.TotalItems).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "summary could not be computed")
		}
		db.Model(&models.Depot{}).Count(&res.TotalDepots)

		balances, err := stockSvc.OverallBalances(c.UserContext(), p)
		if err != nil {
			return err
		}
		for _, b := range balances {
			res.TotalUnitsOnHand += b.Quantity
		}

		low, err := stockSvc.LowStock(c.UserContext(), p, nil)
		if err != nil {
			return err
		}
		res.LowStockItems = len(low)

		expiring, err := stockSvc.ExpiringWithin(c.UserContext(), p, 30*24*time.Hour)
		if err != nil {
			return err
		}
		res.ExpiringWithin30Days = len(expiring)

		db.Model(&models.TransferRequest{}).
			Where("status = ?", models.TransferPending).Count(&res.PendingTransfers)
		db.Model(&models.NeedsList{}).
			Where("status IN ?", []models.NeedsListStatus{
				models.NeedsListSubmitted, models.NeedsListApproved, models.NeedsListDispatched,
			}).Count(&res.OpenNeedsLists)
		db.Model(&models.DistributionPackage{}).
			Where("status IN ?", []models.PackageStatus{
				models.PackageUnderReview, models.PackageApproved, models.PackageDispatched,
			}).Count(&res.PackagesInFlight)
		db.Model(&models.Transaction{}).
			Where("created_at >= ?", time.Now().Add(-24*time.Hour)).Count(&res.TransactionsLast24h)

		return c.JSON(res)
	}
}

// GET /api/dashboard/recent-transactions?limit=20
func RecentTransactionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		var txns []models.Transaction
		if err := database.DB.
			Preload("Depot").Preload("Item").
			Where("status = ?", models.TxnCommitted).
			Order("occurred_at DESC").Limit(limit).
			Find(&txns).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "transactions could not be listed")
		}

		res := make([]RecentTransactionRow, 0, len(txns))
		for _, t := range txns {
			res = append(res, RecentTransactionRow{
				ID:         t.ID,
				PairID:     t.PairID,
				DepotName:  t.Depot.Name,
				ItemName:   t.Item.Name,
				Quantity:   t.Quantity,
				OccurredAt: t.OccurredAt.Format("2006-01-02 15:04:05"),
			})
		}
		return c.JSON(res)
	}
}
