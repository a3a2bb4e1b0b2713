package admin

import (
	"strings"
	"time"

	"drims-backend/internal/database"
	"drims-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type EventResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

type CreateEventRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // optional
}

func CreateEventHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateEventRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "event name is required")
		}
		start, err := time.Parse("2006-01-02", body.StartDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "start_date must be YYYY-MM-DD")
		}

		event := models.DisasterEvent{Name: body.Name, StartDate: start}
		if body.EndDate != "" {
			end, err := time.Parse("2006-01-02", body.EndDate)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "end_date must be YYYY-MM-DD")
			}
			if end.Before(start) {
				return fiber.NewError(fiber.StatusBadRequest, "end_date cannot be before start_date")
			}
			event.EndDate = &end
		}

		if err := database.DB.Create(&event).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "event could not be created (name must be unique)")
		}
		return c.Status(fiber.StatusCreated).JSON(toEventResponse(&event))
	}
}

func ListEventsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var events []models.DisasterEvent
		if err := database.DB.Order("start_date DESC").Find(&events).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "events could not be listed")
		}

		res := make([]EventResponse, 0, len(events))
		for i := range events {
			res = append(res, *toEventResponse(&events[i]))
		}
		return c.JSON(res)
	}
}

// CloseEventHandler sets the end date; new transactions may still reference a
// closed event for late reporting.
func CloseEventHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var event models.DisasterEvent
		if err := database.DB.First(&event, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "event not found")
		}
		if event.EndDate != nil {
			return fiber.NewError(fiber.StatusConflict, "event is already closed")
		}

		now := time.Now()
		event.EndDate = &now
		if err := database.DB.Save(&event).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "event could not be closed")
		}
		return c.JSON(toEventResponse(&event))
	}
}

func toEventResponse(e *models.DisasterEvent) *EventResponse {
	res := &EventResponse{
		ID:        e.ID,
		Name:      e.Name,
		StartDate: e.StartDate.Format("2006-01-02"),
	}
	if e.EndDate != nil {
		res.EndDate = e.EndDate.Format("2006-01-02")
	}
	return res
}
