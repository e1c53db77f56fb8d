package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/minhmom/api/internal/database"
	"github.com/rs/zerolog/log"
)

// UserStore defines the database methods needed by the customer handlers.
type UserStore interface {
	ListCustomers(ctx context.Context, arg database.ListCustomersParams) ([]database.Customer, error)
	CountCustomers(ctx context.Context, search string) (int64, error)
	GetCustomerByUID(ctx context.Context, fbUID string) (database.Customer, error)
	UpsertCustomer(ctx context.Context, arg database.UpsertCustomerParams) (database.Customer, error)
	UpdateCustomer(ctx context.Context, arg database.UpdateCustomerParams) (database.Customer, error)
	DeleteCustomer(ctx context.Context, fbUID string) (int64, error)
	ListOrdersByCustomer(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.AllOrdersRow, error)
	CustomerOrderStats(ctx context.Context, groupID, customerUID string) (database.CustomerOrderStatsRow, error)
	ListCustomersWithOrders(ctx context.Context, arg database.ListCustomersWithOrdersParams) ([]database.CustomerWithOrdersRow, error)
	CountCustomersWithOrders(ctx context.Context, groupID string, activeOnly bool, search string) (int64, error)
}

// UserHandler handles customer endpoints. Customers here are the group
// members whose comments turn into orders, not login accounts.
type UserHandler struct {
	store UserStore
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore) *UserHandler {
	return &UserHandler{store: store}
}

// RegisterRoutes registers customer endpoints. Mounted under /groups/{group_id}.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.List)
	r.Get("/users/search", h.Search)
	r.Get("/users/with-orders", h.ListWithOrders)
	r.Route("/users/{uid}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Upsert)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Get("/orders", h.Orders)
	})
}

// --- Request / Response types ---

type upsertUserRequest struct {
	FbUsername  string   `json:"fb_username"`
	Name        string   `json:"name"`
	FbURL       string   `json:"fb_url"`
	Addresses   []string `json:"addresses"`
	PhoneNumber string   `json:"phone_number"`
	AvatarURL   string   `json:"avatar_url"`
	Notes       string   `json:"notes"`
}

type userResponse struct {
	FbUID       string   `json:"fb_uid"`
	FbUsername  *string  `json:"fb_username"`
	Name        *string  `json:"name"`
	FbURL       *string  `json:"fb_url"`
	Addresses   []string `json:"addresses"`
	PhoneNumber *string  `json:"phone_number"`
	AvatarURL   *string  `json:"avatar_url"`
	Notes       *string  `json:"notes"`
	IsActive    bool     `json:"is_active"`
}

type userWithOrdersResponse struct {
	FbUID             string   `json:"fb_uid"`
	Name              *string  `json:"name"`
	FbUsername        *string  `json:"fb_username"`
	FbURL             *string  `json:"fb_url"`
	PhoneNumber       *string  `json:"phone_number"`
	AvatarURL         *string  `json:"avatar_url"`
	Addresses         []string `json:"addresses"`
	OrderCount        int64    `json:"order_count"`
	TotalRevenue      string   `json:"total_revenue"`
	LatestCommentTime *string  `json:"latest_comment_time"`
}

type userOrdersResponse struct {
	Orders         []orderResponse `json:"orders"`
	TotalOrders    int64           `json:"total_orders"`
	TotalRevenue   string          `json:"total_revenue"`
	CancelledCount int64           `json:"cancelled_count"`
}

func toUserResponse(c database.Customer) userResponse {
	return userResponse{
		FbUID:       c.FbUID,
		FbUsername:  textPtr(c.FbUsername),
		Name:        textPtr(c.Name),
		FbURL:       textPtr(c.FbURL),
		Addresses:   c.Addresses,
		PhoneNumber: textPtr(c.PhoneNumber),
		AvatarURL:   textPtr(c.AvatarURL),
		Notes:       textPtr(c.Notes),
		IsActive:    c.IsActive,
	}
}

// --- Handlers ---

// List returns known customers with optional search and sorting.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	customers, err := h.store.ListCustomers(r.Context(), database.ListCustomersParams{
		Search:  q.Get("search"),
		SortBy:  q.Get("sort_by"),
		SortDir: q.Get("sort_dir"),
		Limit:   int32(pageSize),
		Offset:  pageOffset(page, pageSize),
	})
	if err != nil {
		log.Error().Err(err).Msg("list customers")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountCustomers(r.Context(), q.Get("search"))
	if err != nil {
		log.Error().Err(err).Msg("count customers")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userResponse, len(customers))
	for i, c := range customers {
		resp[i] = toUserResponse(c)
	}
	writeJSON(w, http.StatusOK, newListResponse(resp, total, page, pageSize))
}

// Search backs the customer picker dropdown: a name/username prefix search
// returning a small result set. Queries under two characters return nothing.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if len([]rune(q)) < 2 {
		writeJSON(w, http.StatusOK, []userResponse{})
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 50 {
			limit = v
		}
	}

	customers, err := h.store.ListCustomers(r.Context(), database.ListCustomersParams{
		Search: q,
		Limit:  int32(limit),
	})
	if err != nil {
		log.Error().Err(err).Msg("search customers")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userResponse, len(customers))
	for i, c := range customers {
		resp[i] = toUserResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListWithOrders returns customers aggregated with their order stats for
// the group. Pass active=true to count only in-flight orders.
func (h *UserHandler) ListWithOrders(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group_id")
	page, pageSize := parsePagination(r)
	q := r.URL.Query()
	activeOnly := q.Get("active") == "true"

	rows, err := h.store.ListCustomersWithOrders(r.Context(), database.ListCustomersWithOrdersParams{
		GroupID:    groupID,
		Search:     q.Get("search"),
		ActiveOnly: activeOnly,
		SortBy:     q.Get("sort_by"),
		SortDir:    q.Get("sort_dir"),
		Limit:      int32(pageSize),
		Offset:     pageOffset(page, pageSize),
	})
	if err != nil {
		log.Error().Err(err).Msg("list customers with orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountCustomersWithOrders(r.Context(), groupID, activeOnly, q.Get("search"))
	if err != nil {
		log.Error().Err(err).Msg("count customers with orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]userWithOrdersResponse, len(rows))
	for i, row := range rows {
		resp[i] = userWithOrdersResponse{
			FbUID:             row.CustomerUID,
			Name:              textPtr(row.Name),
			FbUsername:        textPtr(row.FbUsername),
			FbURL:             textPtr(row.FbURL),
			PhoneNumber:       textPtr(row.PhoneNumber),
			AvatarURL:         textPtr(row.AvatarURL),
			Addresses:         row.Addresses,
			OrderCount:        row.OrderCount,
			TotalRevenue:      numericToString(row.TotalRevenue),
			LatestCommentTime: timePtr(row.LatestCommentTime),
		}
	}
	writeJSON(w, http.StatusOK, newListResponse(resp, total, page, pageSize))
}

// Get returns one customer.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	customer, err := h.store.GetCustomerByUID(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Error().Err(err).Msg("get customer")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(customer))
}

// Upsert creates or replaces a customer profile keyed by fb_uid.
func (h *UserHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	customer, err := h.store.UpsertCustomer(r.Context(), database.UpsertCustomerParams{
		FbUID:       chi.URLParam(r, "uid"),
		FbUsername:  textOrNull(req.FbUsername),
		Name:        textOrNull(req.Name),
		FbURL:       textOrNull(req.FbURL),
		Addresses:   req.Addresses,
		PhoneNumber: textOrNull(req.PhoneNumber),
		AvatarURL:   textOrNull(req.AvatarURL),
		Notes:       textOrNull(req.Notes),
		IsActive:    true,
	})
	if err != nil {
		log.Error().Err(err).Msg("upsert customer")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(customer))
}

// Update patches the provided customer fields only.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string  `json:"name"`
		Addresses   []string `json:"addresses"`
		PhoneNumber *string  `json:"phone_number"`
		Notes       *string  `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	arg := database.UpdateCustomerParams{FbUID: chi.URLParam(r, "uid"), Addresses: req.Addresses}
	if req.Name != nil {
		arg.Name = pgtype.Text{String: *req.Name, Valid: true}
	}
	if req.PhoneNumber != nil {
		arg.PhoneNumber = pgtype.Text{String: *req.PhoneNumber, Valid: true}
	}
	if req.Notes != nil {
		arg.Notes = pgtype.Text{String: *req.Notes, Valid: true}
	}

	customer, err := h.store.UpdateCustomer(r.Context(), arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
			return
		}
		log.Error().Err(err).Msg("update customer")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(customer))
}

// Delete removes a customer profile. Their orders keep the snapshot taken
// at parse time.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.DeleteCustomer(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		log.Error().Err(err).Msg("delete customer")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Orders returns a customer's orders and aggregate stats for the group.
func (h *UserHandler) Orders(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group_id")
	uid := chi.URLParam(r, "uid")
	page, pageSize := parsePagination(r)

	orders, err := h.store.ListOrdersByCustomer(r.Context(), database.ListOrdersByCustomerParams{
		GroupID:     groupID,
		CustomerUID: uid,
		Limit:       int32(pageSize),
		Offset:      pageOffset(page, pageSize),
	})
	if err != nil {
		log.Error().Err(err).Msg("list customer orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	stats, err := h.store.CustomerOrderStats(r.Context(), groupID, uid)
	if err != nil {
		log.Error().Err(err).Msg("customer order stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := userOrdersResponse{
		Orders:         make([]orderResponse, len(orders)),
		TotalOrders:    stats.TotalOrders,
		TotalRevenue:   numericToString(stats.TotalRevenue),
		CancelledCount: stats.CancelledCount,
	}
	for i, o := range orders {
		resp.Orders[i] = toAllOrdersResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}
