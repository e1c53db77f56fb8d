package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/enum"
	"github.com/minhmom/api/internal/middleware"
	"github.com/rs/zerolog/log"
)

// StatusStore defines the database methods needed by status handlers.
type StatusStore interface {
	ListStatuses(ctx context.Context, active pgtype.Bool) ([]database.Status, error)
	GetStatus(ctx context.Context, statusCode string) (database.Status, error)
	CreateStatus(ctx context.Context, arg database.CreateStatusParams) (database.Status, error)
	UpdateStatus(ctx context.Context, arg database.UpdateStatusParams) (database.Status, error)
	DeleteStatus(ctx context.Context, statusCode string) (int64, error)
}

// StatusHandler handles status catalog endpoints.
type StatusHandler struct {
	store StatusStore
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(store StatusStore) *StatusHandler {
	return &StatusHandler{store: store}
}

// RegisterRoutes registers status endpoints on the given Chi router.
func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/statuses", h.List)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Post("/statuses", h.Create)
	r.Route("/statuses/{code}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.With(middleware.RequireRole(enum.RoleAdmin)).Put("/", h.Update)
		r.With(middleware.RequireRole(enum.RoleAdmin)).Delete("/", h.Delete)
	})
}

// --- Request / Response types ---

type statusRequest struct {
	StatusCode  string `json:"status_code"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
	ViewOrder   *int32 `json:"view_order"`
}

type statusResponse struct {
	StatusCode  string  `json:"status_code"`
	DisplayName string  `json:"display_name"`
	Description *string `json:"description"`
	IsActive    bool    `json:"is_active"`
	ViewOrder   *int32  `json:"view_order"`
}

func toStatusResponse(s database.Status) statusResponse {
	resp := statusResponse{
		StatusCode:  s.StatusCode,
		DisplayName: s.DisplayName,
		Description: textPtr(s.Description),
		IsActive:    s.IsActive,
	}
	if s.ViewOrder.Valid {
		resp.ViewOrder = &s.ViewOrder.Int32
	}
	return resp
}

// --- Handlers ---

// List returns the status catalog, ordered for display. Pass active=true
// to hide disabled statuses.
func (h *StatusHandler) List(w http.ResponseWriter, r *http.Request) {
	active := pgtype.Bool{}
	if s := r.URL.Query().Get("active"); s != "" {
		active = pgtype.Bool{Bool: s == "true", Valid: true}
	}

	statuses, err := h.store.ListStatuses(r.Context(), active)
	if err != nil {
		log.Error().Err(err).Msg("list statuses")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]statusResponse, len(statuses))
	for i, s := range statuses {
		resp[i] = toStatusResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one status by code.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.store.GetStatus(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "status not found"})
			return
		}
		log.Error().Err(err).Msg("get status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(status))
}

// Create adds a status to the catalog. Admin only.
func (h *StatusHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.StatusCode == "" || req.DisplayName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status_code and display_name are required"})
		return
	}

	arg := database.CreateStatusParams{
		StatusCode:  req.StatusCode,
		DisplayName: req.DisplayName,
		IsActive:    true,
	}
	if req.IsActive != nil {
		arg.IsActive = *req.IsActive
	}
	if req.Description != "" {
		arg.Description = pgtype.Text{String: req.Description, Valid: true}
	}
	if req.ViewOrder != nil {
		arg.ViewOrder = pgtype.Int4{Int32: *req.ViewOrder, Valid: true}
	}

	status, err := h.store.CreateStatus(r.Context(), arg)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "status_code already exists"})
			return
		}
		log.Error().Err(err).Msg("create status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toStatusResponse(status))
}

// Update modifies a status. Admin only.
func (h *StatusHandler) Update(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.DisplayName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "display_name is required"})
		return
	}

	arg := database.UpdateStatusParams{
		StatusCode:  code,
		DisplayName: req.DisplayName,
		IsActive:    true,
	}
	if req.IsActive != nil {
		arg.IsActive = *req.IsActive
	}
	if req.Description != "" {
		arg.Description = pgtype.Text{String: req.Description, Valid: true}
	}
	if req.ViewOrder != nil {
		arg.ViewOrder = pgtype.Int4{Int32: *req.ViewOrder, Valid: true}
	}

	status, err := h.store.UpdateStatus(r.Context(), arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "status not found"})
			return
		}
		log.Error().Err(err).Msg("update status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toStatusResponse(status))
}

// Delete removes a status from the catalog. Admin only. The two terminal
// statuses are load-bearing for filters and dashboards, so they stay.
func (h *StatusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	for _, terminal := range enum.TerminalStatuses {
		if code == terminal {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "built-in status cannot be deleted"})
			return
		}
	}

	n, err := h.store.DeleteStatus(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("delete status")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "status not found"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
