package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/enum"
	"github.com/minhmom/api/internal/handler"
)

type mockDashboardStore struct {
	rows     []database.YearOrderRow
	lastYear int
}

func (m *mockDashboardStore) ListOrdersForYear(_ context.Context, groupID string, year int) ([]database.YearOrderRow, error) {
	m.lastYear = year
	return m.rows, nil
}

func setupDashboardRouter(store *mockDashboardStore) *chi.Mux {
	h := handler.NewDashboardHandler(store)
	r := chi.NewRouter()
	r.Use(asRole("mom", enum.RoleAdmin))
	r.Route("/groups/{group_id}", h.RegisterRoutes)
	return r
}

func yearOrder(month int, status, total, cost string) database.YearOrderRow {
	row := database.YearOrderRow{
		ParsedAt:   time.Date(2025, time.Month(month), 15, 10, 0, 0, 0, time.UTC),
		StatusCode: status,
	}
	_ = row.TotalPrice.Scan(total)
	_ = row.ImportPrice.Scan(cost)
	return row
}

func TestDashboard_MonthlyAggregation(t *testing.T) {
	store := &mockDashboardStore{rows: []database.YearOrderRow{
		yearOrder(1, "NEW", "500000", "300000"),
		yearOrder(1, "DONE", "250000", "100000"),
		yearOrder(3, "DELIVERING", "400000", "250000"),
		yearOrder(3, enum.StatusCancelled, "999000", "500000"),
	}}
	router := setupDashboardRouter(store)

	rr := doRequest(t, router, "GET", "/groups/g1/dashboard?year=2025", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if store.lastYear != 2025 {
		t.Errorf("queried year = %d, want 2025", store.lastYear)
	}

	resp := decodeMap(t, rr)
	if resp["order_count"].(float64) != 4 {
		t.Errorf("order_count = %v, want 4", resp["order_count"])
	}
	if resp["cancelled_count"].(float64) != 1 {
		t.Errorf("cancelled_count = %v, want 1", resp["cancelled_count"])
	}
	if resp["revenue"] != "1150000" {
		t.Errorf("revenue = %v, want 1150000", resp["revenue"])
	}
	if resp["cost"] != "650000" {
		t.Errorf("cost = %v, want 650000", resp["cost"])
	}
	if resp["profit"] != "500000" {
		t.Errorf("profit = %v, want 500000", resp["profit"])
	}

	if resp["pending_count"].(float64) != 2 {
		t.Errorf("pending_count = %v, want 2", resp["pending_count"])
	}
	counts := resp["status_counts"].(map[string]interface{})
	if counts["NEW"].(float64) != 1 || counts["DONE"].(float64) != 1 || counts["CANCELLED"].(float64) != 1 {
		t.Errorf("status_counts = %v", counts)
	}

	months := resp["months"].([]interface{})
	if len(months) != 12 {
		t.Fatalf("expected 12 month buckets, got %d", len(months))
	}
	jan := months[0].(map[string]interface{})
	if jan["order_count"].(float64) != 2 || jan["revenue"] != "750000" || jan["profit"] != "350000" {
		t.Errorf("january bucket: %v", jan)
	}
	mar := months[2].(map[string]interface{})
	if mar["order_count"].(float64) != 2 || mar["revenue"] != "400000" {
		t.Errorf("march bucket: %v", mar)
	}
	feb := months[1].(map[string]interface{})
	if feb["order_count"].(float64) != 0 || feb["revenue"] != "0" {
		t.Errorf("empty month should be zeroed: %v", feb)
	}
}

func TestDashboard_LossMakingOrder(t *testing.T) {
	store := &mockDashboardStore{rows: []database.YearOrderRow{
		yearOrder(5, "NEW", "100000", "200000"),
	}}
	router := setupDashboardRouter(store)

	rr := doRequest(t, router, "GET", "/groups/g1/dashboard?year=2025", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeMap(t, rr)
	if resp["revenue"] != "100000" || resp["cost"] != "200000" {
		t.Errorf("revenue = %v, cost = %v", resp["revenue"], resp["cost"])
	}
	if resp["profit"] != "0" {
		t.Errorf("profit = %v, want 0 when import price exceeds the total", resp["profit"])
	}
	may := resp["months"].([]interface{})[4].(map[string]interface{})
	if may["profit"] != "0" {
		t.Errorf("may bucket profit = %v, want 0", may["profit"])
	}
}

func TestDashboard_ProfitIgnoresLosses(t *testing.T) {
	store := &mockDashboardStore{rows: []database.YearOrderRow{
		yearOrder(5, "NEW", "100000", "200000"),
		yearOrder(5, "DONE", "300000", "120000"),
	}}
	router := setupDashboardRouter(store)

	rr := doRequest(t, router, "GET", "/groups/g1/dashboard?year=2025", nil)
	resp := decodeMap(t, rr)
	if resp["profit"] != "180000" {
		t.Errorf("profit = %v, want 180000 (loss-making order contributes zero)", resp["profit"])
	}
}

func TestDashboard_EmptyYear(t *testing.T) {
	router := setupDashboardRouter(&mockDashboardStore{})

	rr := doRequest(t, router, "GET", "/groups/g1/dashboard?year=2024", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeMap(t, rr)
	if resp["order_count"].(float64) != 0 || resp["revenue"] != "0" || resp["profit"] != "0" {
		t.Errorf("unexpected totals: %v", resp)
	}
}

func TestDashboard_RequiresAdmin(t *testing.T) {
	h := handler.NewDashboardHandler(&mockDashboardStore{})
	r := chi.NewRouter()
	r.Use(asRole("helper", "user"))
	r.Route("/groups/{group_id}", h.RegisterRoutes)

	rr := doRequest(t, r, "GET", "/groups/g1/dashboard", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestDashboard_InvalidYear(t *testing.T) {
	router := setupDashboardRouter(&mockDashboardStore{})

	for _, year := range []string{"abc", "1999", "2300"} {
		rr := doRequest(t, router, "GET", "/groups/g1/dashboard?year="+year, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("year %q: got %d, want %d", year, rr.Code, http.StatusBadRequest)
		}
	}
}
