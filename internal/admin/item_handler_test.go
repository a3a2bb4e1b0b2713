package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"drims-backend/internal/models"
	"drims-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
)

func postJSON(t *testing.T, app *fiber.App, url string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestCreateItemDuplicateReturnsExistingID(t *testing.T) {
	db := testutil.NewDB(t)
	existing := testutil.CreateItem(t, db, "Rice", "Food", 0)

	app := fiber.New()
	app.Post("/items", CreateItemHandler())

	status, body := postJSON(t, app, "/items", map[string]any{
		"name": "rice", "category": "Food", "unit": "kg",
	})
	if status != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %v)", status, body)
	}
	if id, ok := body["existing_id"].(float64); !ok || uint(id) != existing.ID {
		t.Errorf("existing_id = %v, want %d", body["existing_id"], existing.ID)
	}

	status, body = postJSON(t, app, "/items", map[string]any{
		"name": "Flour", "category": "Food", "unit": "kg",
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %v)", status, body)
	}
	if body["name"] != "Flour" {
		t.Errorf("created name = %v", body["name"])
	}

	var count int64
	db.Model(&models.Item{}).Where("LOWER(name) = ?", "rice").Count(&count)
	if count != 1 {
		t.Errorf("duplicate create must not add a row, found %d", count)
	}
}
