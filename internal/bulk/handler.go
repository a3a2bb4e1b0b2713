package bulk

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"drims-backend/internal/auth"
	"drims-backend/internal/database"
	"drims-backend/internal/ledger"
	"drims-backend/internal/models"
	"drims-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// normalizeName lowercases and collapses whitespace so "Bottled  Water " and
// "bottled water" dedupe to the same item.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func openSheet(c *fiber.Ctx) ([][]string, func(), error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "file upload failed: "+err.Error())
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "only .xlsx files are accepted")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, nil, fiber.NewError(fiber.StatusInternalServerError, "file could not be opened: "+err.Error())
	}

	excelFile, err := excelize.OpenReader(file)
	if err != nil {
		file.Close()
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "workbook could not be read: "+err.Error())
	}
	cleanup := func() {
		excelFile.Close()
		file.Close()
	}

	sheets := excelFile.GetSheetList()
	if len(sheets) == 0 {
		cleanup()
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "workbook has no sheets")
	}
	rows, err := excelFile.GetRows(sheets[0])
	if err != nil {
		cleanup()
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "sheet could not be read: "+err.Error())
	}
	if len(rows) == 0 {
		cleanup()
		return nil, nil, fiber.NewError(fiber.StatusBadRequest, "workbook is empty")
	}
	return rows, cleanup, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func looksLikeHeader(row []string) bool {
	first := strings.ToUpper(cell(row, 0))
	return strings.Contains(first, "NAME") || strings.Contains(first, "ITEM") ||
		strings.Contains(first, "DEPOT")
}

// POST /api/bulk/items
// Sheet columns: Name | Category | Unit | MinQty | ShelfLifeClass | Barcode.
// Rows whose name matches an existing item are skipped, not updated.
func ImportItemsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, cleanup, err := openSheet(c)
		if err != nil {
			return err
		}
		defer cleanup()

		var existing []models.Item
		if err := database.DB.Find(&existing).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "items could not be loaded")
		}
		known := make(map[string]bool, len(existing))
		for _, it := range existing {
			known[normalizeName(it.Name)] = true
		}

		start := 0
		if looksLikeHeader(rows[0]) {
			start = 1
		}

		created := 0
		skipped := make([]string, 0)
		failed := make([]string, 0)

		for i := start; i < len(rows); i++ {
			name := cell(rows[i], 0)
			if name == "" {
				continue
			}
			if known[normalizeName(name)] {
				skipped = append(skipped, name)
				continue
			}

			unit := cell(rows[i], 2)
			if unit == "" {
				unit = "pcs"
			}
			var minQty int64
			if raw := cell(rows[i], 3); raw != "" {
				if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v >= 0 {
					minQty = v
				}
			}

			category := cell(rows[i], 1)
			item := models.Item{
				SKU:            bulkSKU(category),
				Name:           name,
				Category:       category,
				Unit:           unit,
				MinQty:         minQty,
				ShelfLifeClass: strings.ToUpper(cell(rows[i], 4)),
				Barcode:        cell(rows[i], 5),
			}
			if err := database.DB.Create(&item).Error; err != nil {
				failed = append(failed, name)
				continue
			}
			known[normalizeName(name)] = true
			created++
		}

		return c.JSON(fiber.Map{
			"created": created,
			"skipped": skipped,
			"failed":  failed,
			"message": fmt.Sprintf("%d items created, %d skipped as duplicates", created, len(skipped)),
		})
	}
}

// POST /api/bulk/opening-stock
// Sheet columns: Depot | Item | Quantity | ExpiryDate (YYYY-MM-DD, optional).
// Each matched row becomes an inbound ledger entry from the external world.
func ImportOpeningStockHandler(lgr *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		rows, cleanup, err := openSheet(c)
		if err != nil {
			return err
		}
		defer cleanup()

		var depots []models.Depot
		if err := database.DB.Find(&depots).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "depots could not be loaded")
		}
		depotByName := make(map[string]uint, len(depots))
		for _, d := range depots {
			depotByName[normalizeName(d.Name)] = d.ID
		}

		var items []models.Item
		if err := database.DB.Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "items could not be loaded")
		}
		itemByName := make(map[string]uint, len(items))
		for _, it := range items {
			itemByName[normalizeName(it.Name)] = it.ID
			if it.SKU != "" {
				itemByName[normalizeName(it.SKU)] = it.ID
			}
		}

		start := 0
		if looksLikeHeader(rows[0]) {
			start = 1
		}

		loaded := 0
		unmatched := make([]string, 0)

		for i := start; i < len(rows); i++ {
			depotName := cell(rows[i], 0)
			itemName := cell(rows[i], 1)
			if depotName == "" && itemName == "" {
				continue
			}

			depotID, okDepot := depotByName[normalizeName(depotName)]
			itemID, okItem := itemByName[normalizeName(itemName)]
			qty, qtyErr := strconv.ParseInt(cell(rows[i], 2), 10, 64)
			if !okDepot || !okItem || qtyErr != nil || qty <= 0 {
				unmatched = append(unmatched, fmt.Sprintf("row %d: %s / %s", i+1, depotName, itemName))
				continue
			}

			var expiry *time.Time
			if raw := cell(rows[i], 3); raw != "" {
				if t, err := time.Parse("2006-01-02", raw); err == nil {
					expiry = &t
				}
			}

			_, err := lgr.Append(c.UserContext(), ledger.Movement{
				ItemID:       itemID,
				Quantity:     qty,
				DestDepotID:  &depotID,
				ExpiryDate:   expiry,
				Note:         "opening stock import",
				RecordedByID: p.UserID,
			})
			if err != nil {
				unmatched = append(unmatched, fmt.Sprintf("row %d: %s / %s", i+1, depotName, itemName))
				continue
			}
			loaded++
		}

		return c.JSON(fiber.Map{
			"loaded":    loaded,
			"unmatched": unmatched,
			"message":   fmt.Sprintf("%d opening stock rows loaded, %d unmatched", loaded, len(unmatched)),
		})
	}
}

// GET /api/bulk/stock-export
// Streams the caller's visible stock position as an xlsx workbook.
func ExportStockHandler(svc *stock.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFromCtx(c)
		if err != nil {
			return err
		}

		balances, err := svc.OverallBalances(c.UserContext(), p)
		if err != nil {
			return err
		}

		f := excelize.NewFile()
		defer f.Close()

		sheet := f.GetSheetName(0)
		headers := []string{"SKU", "Item", "Category", "Unit", "Quantity"}
		for i, h := range headers {
			col, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, col, h)
		}
		for r, b := range balances {
			f.SetCellValue(sheet, fmt.Sprintf("A%d", r+2), b.SKU)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", r+2), b.Name)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", r+2), b.Category)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", r+2), b.Unit)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", r+2), b.Quantity)
		}

		buf, err := f.WriteToBuffer()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "workbook could not be written")
		}

		filename := fmt.Sprintf("stock-%s.xlsx", time.Now().Format("2006-01-02"))
		c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		return c.Send(buf.Bytes())
	}
}

func bulkSKU(category string) string {
	prefix := "GEN"
	cat := strings.ToUpper(strings.TrimSpace(category))
	if len(cat) >= 3 {
		prefix = cat[:3]
	} else if cat != "" {
		prefix = cat
	}
	frag := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return prefix + "-" + frag
}
