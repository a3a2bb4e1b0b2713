package admin

import (
	"strings"

	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type DonorResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Contact   string `json:"contact,omitempty"`
	CreatedAt string `json:"created_at"`
}

type BeneficiaryResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Contact   string `json:"contact,omitempty"`
	Parish    string `json:"parish,omitempty"`
	CreatedAt string `json:"created_at"`
}

func CreateDonorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Name    string `json:"name"`
			Contact string `json:"contact"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "donor name is required")
		}

		donor := models.Donor{Name: body.Name, Contact: strings.TrimSpace(body.Contact)}
		if err := database.DB.Create(&donor).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "donor could not be created")
		}
		return c.Status(fiber.StatusCreated).JSON(DonorResponse{
			ID:        donor.ID,
			Name:      donor.Name,
			Contact:   donor.Contact,
			CreatedAt: donor.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

func ListDonorsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Donor{})
		if q := c.Query("q"); q != "" {
			dbq = dbq.Where("LOWER(name) LIKE LOWER(?)", "%"+q+"%")
		}

		var donors []models.Donor
		if err := dbq.Order("name ASC").Find(&donors).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "donors could not be listed")
		}

		res := make([]DonorResponse, 0, len(donors))
		for _, d := range donors {
			res = append(res, DonorResponse{
				ID:        d.ID,
				Name:      d.Name,
				Contact:   d.Contact,
				CreatedAt: d.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return c.JSON(res)
	}
}

func CreateBeneficiaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Name    string `json:"name"`
			Contact string `json:"contact"`
			Parish  string `json:"parish"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "beneficiary name is required")
		}

		ben := models.Beneficiary{
			Name:    body.Name,
			Contact: strings.TrimSpace(body.Contact),
			Parish:  strings.TrimSpace(body.Parish),
		}
		if err := database.DB.Create(&ben).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "beneficiary could not be created")
		}
		return c.Status(fiber.StatusCreated).JSON(BeneficiaryResponse{
			ID:        ben.ID,
			Name:      ben.Name,
			Contact:   ben.Contact,
			Parish:    ben.Parish,
			CreatedAt: ben.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

func ListBeneficiariesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Beneficiary{})
		if q := c.Query("q"); q != "" {
			dbq = dbq.Where("LOWER(name) LIKE LOWER(?)", "%"+q+"%")
		}
		if parish := c.Query("parish"); parish != "" {
			dbq = dbq.Where("parish = ?", parish)
		}

		var bens []models.Beneficiary
		if err := dbq.Order("name ASC").Find(&bens).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "beneficiaries could not be listed")
		}

		res := make([]BeneficiaryResponse, 0, len(bens))
		for _, b := range bens {
			res = append(res, BeneficiaryResponse{
				ID:        b.ID,
				Name:      b.Name,
				Contact:   b.Contact,
				Parish:    b.Parish,
				CreatedAt: b.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return c.JSON(res)
	}
}
