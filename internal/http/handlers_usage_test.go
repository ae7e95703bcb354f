package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"

	"github.com/scottsumerford/AutoPrep-Team-sub000/internal/store"
)

func newUsageApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	app := fiber.New()
	app.Get("/admin/usage", func(c *fiber.Ctx) error {
		c.Locals("store", st)
		return usageSummaryHandler(c)
	})
	return app, mock
}

func TestUsageSummary(t *testing.T) {
	app, mock := newUsageApp(t)

	mock.ExpectQuery(`SELECT agent, COUNT\(\*\)`).
		WillReturnRows(sqlmock.NewRows([]string{"agent", "runs", "prompt", "completion", "total"}).
			AddRow("agent-report", int64(3), int64(4500), int64(3000), int64(7500)).
			AddRow("agent-slides", int64(1), int64(900), int64(600), int64(1500)))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/usage?days=7", nil), -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body UsageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Usage) != 2 {
		t.Fatalf("got %d usage rows, want 2", len(body.Usage))
	}
	if body.Usage[0].Agent != "agent-report" || body.Usage[0].TotalTokens != 7500 {
		t.Fatalf("unexpected usage row: %+v", body.Usage[0])
	}
}

func TestUsageSummary_BadDays(t *testing.T) {
	app, _ := newUsageApp(t)

	for _, q := range []string{"?days=abc", "?days=0", "?days=-5"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/usage"+q, nil), -1)
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", q, resp.StatusCode)
		}
	}
}
