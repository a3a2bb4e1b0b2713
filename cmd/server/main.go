package main

import (
	"errors"
	"os"
	"strings"

	"drims-backend/internal/admin"
	"drims-backend/internal/apperr"
	"drims-backend/internal/audit"
	"drims-backend/internal/auth"
	"drims-backend/internal/bulk"
	"drims-backend/internal/config"
	"drims-backend/internal/dashboard"
	"drims-backend/internal/database"
	"drims-backend/internal/distribution"
	"drims-backend/internal/ledger"
	"drims-backend/internal/models"
	"drims-backend/internal/needslist"
	"drims-backend/internal/stock"
	"drims-backend/internal/transfer"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"
)

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("configuration is invalid")
	}

	log := newLogger(cfg.LogLevel)

	if err := database.Init(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}

	ledgerSvc := ledger.New(database.DB, log)
	stockSvc := stock.NewService(database.DB)
	transferSvc := transfer.NewService(database.DB, ledgerSvc, log)
	needsSvc := needslist.NewService(database.DB, ledgerSvc, log)
	distSvc := distribution.NewService(database.DB, ledgerSvc, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			status := apperr.HTTPStatus(err)
			if status >= fiber.StatusInternalServerError {
				log.Error().Err(err).Str("path", c.Path()).Msg("unexpected error")
				return c.Status(status).JSON(fiber.Map{"error": "unexpected server error"})
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		},
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// System administration
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	adminRoutes.Post("/depots", admin.CreateDepotHandler())
	adminRoutes.Put("/depots/:id", admin.UpdateDepotHandler())
	adminRoutes.Delete("/depots/:id", admin.DeleteDepotHandler())
	adminRoutes.Post("/users", admin.CreateUserHandler())
	adminRoutes.Get("/users", admin.ListUsersHandler())
	adminRoutes.Put("/users/:id", admin.UpdateUserHandler())
	adminRoutes.Delete("/users/:id", admin.DeleteUserHandler())

	// Depot/catalog reads are open to any authenticated user
	protected.Get("/depots", admin.ListDepotsHandler())
	protected.Get("/depots/:id", admin.GetDepotHandler())
	protected.Get("/items", admin.ListItemsHandler())
	protected.Get("/items/:id", admin.GetItemHandler())
	protected.Get("/donors", admin.ListDonorsHandler())
	protected.Get("/beneficiaries", admin.ListBeneficiariesHandler())
	protected.Get("/events", admin.ListEventsHandler())

	// Catalog management
	catalog := protected.Group("")
	catalog.Use(auth.RequireRole(models.RoleLogisticsManager, models.RoleLogisticsOfficer))
	catalog.Post("/items", admin.CreateItemHandler())
	catalog.Put("/items/:id", admin.UpdateItemHandler())
	catalog.Delete("/items/:id", admin.DeleteItemHandler())
	catalog.Post("/donors", admin.CreateDonorHandler())
	catalog.Post("/beneficiaries", admin.CreateBeneficiaryHandler())
	catalog.Post("/events", admin.CreateEventHandler())
	catalog.Post("/events/:id/close", admin.CloseEventHandler())

	// Ledger intake / outflow
	intake := protected.Group("")
	intake.Use(auth.RequireRole(models.RoleWarehouseStaff, models.RoleLogisticsOfficer, models.RoleLogisticsManager))
	intake.Post("/donations", ledger.CreateDonationHandler(ledgerSvc))

	outflow := protected.Group("")
	outflow.Use(auth.RequireRole(models.RoleFieldPersonnel, models.RoleWarehouseStaff, models.RoleLogisticsOfficer, models.RoleLogisticsManager))
	outflow.Post("/distributions-out", ledger.CreateDistributionOutHandler(ledgerSvc))

	protected.Get("/transactions", auth.RequireRole(models.RoleAuditor, models.RoleExecutive, models.RoleLogisticsOfficer, models.RoleLogisticsManager), ledger.ListTransactionsHandler())
	protected.Post("/transactions/:pair_id/void", auth.RequireRole(models.RoleLogisticsManager), ledger.VoidPairHandler(ledgerSvc))

	// Stock queries; AGENCY visibility scoping happens inside the service
	protected.Get("/stock/overall", stock.OverallHandler(stockSvc))
	protected.Get("/stock/by-category", stock.ByCategoryHandler(stockSvc))
	protected.Get("/stock/low", stock.LowStockHandler(stockSvc))
	protected.Get("/stock/expiring", stock.ExpiringHandler(stockSvc))
	protected.Get("/stock/depots/:depot_id", stock.DepotBalancesHandler(stockSvc))
	protected.Get("/stock/depots/:depot_id/items/:item_id", stock.BalanceHandler(stockSvc))

	// Transfers
	transfers := protected.Group("/transfers")
	transfers.Get("/", transfer.ListHandler())
	transfers.Post("/", auth.RequireRole(models.RoleWarehouseStaff, models.RoleLogisticsOfficer, models.RoleLogisticsManager), transfer.RequestHandler(transferSvc))
	transfers.Post("/:id/decision", auth.RequireRole(models.RoleLogisticsOfficer, models.RoleLogisticsManager), transfer.DecideHandler(transferSvc))

	// Needs lists
	needs := protected.Group("/needs-lists")
	needs.Get("/", needslist.ListHandler(needsSvc))
	needs.Get("/:id", needslist.GetHandler(needsSvc))
	needs.Post("/", auth.RequireRole(models.RoleFieldPersonnel, models.RoleWarehouseStaff, models.RoleLogisticsOfficer, models.RoleLogisticsManager), needslist.CreateHandler(needsSvc))
	needs.Put("/:id/lines", auth.RequireRole(models.RoleFieldPersonnel, models.RoleWarehouseStaff, models.RoleLogisticsOfficer, models.RoleLogisticsManager), needslist.SetLinesHandler(needsSvc))
	needs.Post("/:id/submit", auth.RequireRole(models.RoleFieldPersonnel, models.RoleWarehouseStaff, models.RoleLogisticsOfficer, models.RoleLogisticsManager), needslist.SubmitHandler(needsSvc))
	needs.Post("/:id/review", auth.RequireRole(models.RoleLogisticsOfficer, models.RoleLogisticsManager), needslist.ReviewHandler(needsSvc))
	needs.Post("/:id/dispatch", auth.RequireRole(models.RoleLogisticsOfficer, models.RoleLogisticsManager), needslist.DispatchHandler(needsSvc))
	needs.Post("/:id/receive", auth.RequireRole(models.RoleFieldPersonnel, models.RoleWarehouseStaff, models.RoleLogisticsOfficer, models.RoleLogisticsManager), needslist.ReceiveHandler(needsSvc))
	needs.Post("/:id/close", auth.RequireRole(models.RoleFieldPersonnel, models.RoleWarehouseStaff, models.RoleLogisticsOfficer, models.RoleLogisticsManager), needslist.CloseHandler(needsSvc))
	needs.Post("/:id/amend", auth.RequireRole(models.RoleLogisticsOfficer, models.RoleLogisticsManager), needslist.AmendHandler(needsSvc))

	// Distribution packages
	packages := protected.Group("/distribution-packages")
	packages.Get("/", distribution.ListHandler(distSvc))
	packages.Get("/:id", distribution.GetHandler(distSvc))
	packages.Post("/", auth.RequireRole(models.RoleLogisticsOfficer, models.RoleLogisticsManager), distribution.CreateHandler(distSvc))
	packages.Post("/:id/submit", auth.RequireRole(models.RoleLogisticsOfficer, models.RoleLogisticsManager), distribution.SubmitHandler(distSvc))
	packages.Post("/:id/approve", auth.RequireRole(models.RoleLogisticsManager), distribution.ApproveHandler(distSvc))
	packages.Post("/:id/reject", auth.RequireRole(models.RoleLogisticsManager), distribution.RejectHandler(distSvc))
	packages.Post("/:id/dispatch", auth.RequireRole(models.RoleLogisticsOfficer, models.RoleLogisticsManager), distribution.DispatchHandler(distSvc))
	packages.Post("/:id/receive", auth.RequireRole(models.RoleFieldPersonnel, models.RoleWarehouseStaff, models.RoleLogisticsOfficer, models.RoleLogisticsManager), distribution.ReceiveHandler(distSvc))

	// Bulk xlsx
	protected.Post("/bulk/items", auth.RequireRole(models.RoleLogisticsManager), bulk.ImportItemsHandler())
	protected.Post("/bulk/opening-stock", auth.RequireRole(models.RoleLogisticsManager), bulk.ImportOpeningStockHandler(ledgerSvc))
	protected.Get("/bulk/stock-export", bulk.ExportStockHandler(stockSvc))

	// Dashboard
	protected.Get("/dashboard/summary", dashboard.SummaryHandler(stockSvc))
	protected.Get("/dashboard/recent-transactions", dashboard.RecentTransactionsHandler())

	// Audit logs
	protected.Get("/audit-logs", auth.RequireRole(models.RoleAuditor, models.RoleExecutive, models.RoleLogisticsManager), audit.ListAuditLogsHandler())

	log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
