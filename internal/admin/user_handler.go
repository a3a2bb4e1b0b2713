package admin

import (
	"strings"

	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type UserResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	DepotID   *uint  `json:"depot_id"`
	DepotName string `json:"depot_name,omitempty"`
	CreatedAt string `json:"created_at"`
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	DepotID  *uint  `json:"depot_id"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	DepotID  *uint   `json:"depot_id"`
}

func validRole(r models.UserRole) bool {
	switch r {
	case models.RoleAdmin, models.RoleLogisticsManager, models.RoleLogisticsOfficer,
		models.RoleWarehouseStaff, models.RoleFieldPersonnel, models.RoleExecutive,
		models.RoleAuditor:
		return true
	}
	return false
}

func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name, email and password are required")
		}
		role := models.UserRole(strings.ToUpper(strings.TrimSpace(body.Role)))
		if !validRole(role) {
			return fiber.NewError(fiber.StatusBadRequest, "unknown role")
		}

		var exist models.User
		if err := database.DB.Where("email = ?", body.Email).First(&exist).Error; err == nil {
			return fiber.NewError(fiber.StatusBadRequest, "email is already registered")
		}

		if body.DepotID != nil {
			var depot models.Depot
			if err := database.DB.First(&depot, *body.DepotID).Error; err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "depot not found")
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "password could not be hashed")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         role,
			DepotID:      body.DepotID,
		}
		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "user could not be created")
		}

		return c.Status(fiber.StatusCreated).JSON(toUserResponse(&user))
	}
}

func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.User{}).Preload("Depot")
		if role := c.Query("role"); role != "" {
			dbq = dbq.Where("role = ?", strings.ToUpper(role))
		}
		if depotID := c.Query("depot_id"); depotID != "" {
			dbq = dbq.Where("depot_id = ?", depotID)
		}

		var users []models.User
		if err := dbq.Order("created_at DESC").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "users could not be listed")
		}

		res := make([]UserResponse, 0, len(users))
		for i := range users {
			res = append(res, *toUserResponse(&users[i]))
		}
		return c.JSON(res)
	}
}

func UpdateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}

		var body UpdateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name is required")
			}
			user.Name = name
		}
		if body.Role != nil {
			role := models.UserRole(strings.ToUpper(strings.TrimSpace(*body.Role)))
			if !validRole(role) {
				return fiber.NewError(fiber.StatusBadRequest, "unknown role")
			}
			user.Role = role
		}
		if body.DepotID != nil {
			var depot models.Depot
			if err := database.DB.First(&depot, *body.DepotID).Error; err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "depot not found")
			}
			user.DepotID = body.DepotID
		}
		if body.Password != nil && *body.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "password could not be hashed")
			}
			user.PasswordHash = string(hash)
		}

		if err := database.DB.Save(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "user could not be updated")
		}
		return c.JSON(toUserResponse(&user))
	}
}

func DeleteUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := database.DB.Delete(&models.User{}, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "user could not be deleted")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func toUserResponse(u *models.User) *UserResponse {
	res := &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		DepotID:   u.DepotID,
		CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if u.Depot != nil {
		res.DepotName = u.Depot.Name
	}
	return res
}
