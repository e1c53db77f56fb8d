package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/enum"
	"github.com/minhmom/api/internal/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DashboardStore defines the database methods needed by the dashboard.
type DashboardStore interface {
	ListOrdersForYear(ctx context.Context, groupID string, year int) ([]database.YearOrderRow, error)
}

// DashboardHandler serves the yearly revenue overview.
type DashboardHandler struct {
	store DashboardStore
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(store DashboardStore) *DashboardHandler {
	return &DashboardHandler{store: store}
}

// RegisterRoutes registers the dashboard endpoint. Mounted under
// /groups/{group_id}. Admin only.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.RoleAdmin)).Get("/dashboard", h.Yearly)
}

type monthSummary struct {
	Month      int    `json:"month"`
	OrderCount int64  `json:"order_count"`
	Revenue    string `json:"revenue"`
	Cost       string `json:"cost"`
	Profit     string `json:"profit"`
}

type dashboardResponse struct {
	Year         int              `json:"year"`
	OrderCount   int64            `json:"order_count"`
	Revenue      string           `json:"revenue"`
	Cost         string           `json:"cost"`
	Profit       string           `json:"profit"`
	Cancelled    int64            `json:"cancelled_count"`
	Pending      int64            `json:"pending_count"`
	StatusCounts map[string]int64 `json:"status_counts"`
	CurrentMonth *monthSummary    `json:"current_month,omitempty"`
	Months       []monthSummary   `json:"months"`
}

// Yearly aggregates the group's orders for a calendar year by month.
// Cancelled orders count toward order totals but contribute no revenue
// or cost. Profit is summed per order and only when the order's total
// exceeds its import price, so a loss-making order contributes zero.
func (h *DashboardHandler) Yearly(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 2000 || v > 2200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year"})
			return
		}
		year = v
	}

	rows, err := h.store.ListOrdersForYear(r.Context(), chi.URLParam(r, "group_id"), year)
	if err != nil {
		log.Error().Err(err).Msg("list orders for year")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	type bucket struct {
		count   int64
		revenue decimal.Decimal
		cost    decimal.Decimal
		profit  decimal.Decimal
	}
	months := make([]bucket, 12)
	statusCounts := make(map[string]int64)
	var cancelled, pending int64

	for _, row := range rows {
		statusCounts[row.StatusCode]++
		m := int(row.ParsedAt.UTC().Month()) - 1
		months[m].count++
		if row.StatusCode == enum.StatusCancelled {
			cancelled++
			continue
		}
		if row.StatusCode != enum.StatusDone {
			pending++
		}
		total := rowDecimal(row.TotalPrice)
		cost := rowDecimal(row.ImportPrice)
		months[m].revenue = months[m].revenue.Add(total)
		months[m].cost = months[m].cost.Add(cost)
		if net := total.Sub(cost); net.IsPositive() {
			months[m].profit = months[m].profit.Add(net)
		}
	}

	resp := dashboardResponse{
		Year:         year,
		Cancelled:    cancelled,
		Pending:      pending,
		StatusCounts: statusCounts,
		Months:       make([]monthSummary, 12),
	}
	totalRevenue := decimal.Zero
	totalCost := decimal.Zero
	totalProfit := decimal.Zero
	for i, b := range months {
		resp.OrderCount += b.count
		totalRevenue = totalRevenue.Add(b.revenue)
		totalCost = totalCost.Add(b.cost)
		totalProfit = totalProfit.Add(b.profit)
		resp.Months[i] = monthSummary{
			Month:      i + 1,
			OrderCount: b.count,
			Revenue:    b.revenue.StringFixed(0),
			Cost:       b.cost.StringFixed(0),
			Profit:     b.profit.StringFixed(0),
		}
	}
	resp.Revenue = totalRevenue.StringFixed(0)
	resp.Cost = totalCost.StringFixed(0)
	resp.Profit = totalProfit.StringFixed(0)

	if now := time.Now().UTC(); now.Year() == year {
		resp.CurrentMonth = &resp.Months[int(now.Month())-1]
	}

	writeJSON(w, http.StatusOK, resp)
}

func rowDecimal(n pgtype.Numeric) decimal.Decimal {
	d, err := decimal.NewFromString(numericToString(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}
