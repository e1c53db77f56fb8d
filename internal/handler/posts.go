package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/enum"
	"github.com/minhmom/api/internal/middleware"
	"github.com/minhmom/api/internal/pricing"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PostStore defines the database methods needed by post handlers.
type PostStore interface {
	ListPosts(ctx context.Context, arg database.ListPostsParams) ([]database.Post, error)
	CountPosts(ctx context.Context, groupID, search string) (int64, error)
	GetPost(ctx context.Context, arg database.GetPostParams) (database.Post, error)
	UpdatePost(ctx context.Context, arg database.UpdatePostParams) (database.Post, error)
	ListOrdersByPost(ctx context.Context, arg database.GetPostParams) ([]database.Order, error)
}

// PostHandler handles group post endpoints.
type PostHandler struct {
	store PostStore
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(store PostStore) *PostHandler {
	return &PostHandler{store: store}
}

// RegisterRoutes registers post endpoints. Mounted under /groups/{group_id}.
func (h *PostHandler) RegisterRoutes(r chi.Router) {
	r.Get("/posts", h.List)
	r.Route("/posts/{post_id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
	})
}

// --- Request / Response types ---

type updatePostRequest struct {
	Description *string        `json:"description"`
	Items       []pricing.Item `json:"items"`
	Tags        []string       `json:"tags"`
	ImportPrice *string        `json:"import_price"`
	ImageURLs   []string       `json:"image_urls"`
}

type postResponse struct {
	ID                 string         `json:"id"`
	GroupID            string         `json:"group_id"`
	Description        *string        `json:"description"`
	Items              []pricing.Item `json:"items"`
	Tags               []string       `json:"tags"`
	ImportPrice        *string        `json:"import_price,omitempty"`
	ImageURLs          []string       `json:"image_urls"`
	OrdersLastUpdateAt *string        `json:"orders_last_update_at"`
	CreatedTime        *string        `json:"created_time"`
	UpdatedTime        *string        `json:"updated_time"`
	OrderCount         *int           `json:"order_count,omitempty"`
}

// toPostResponse renders a post. Import price is purchasing data and is
// only exposed to admins.
func toPostResponse(p database.Post, isAdmin bool) postResponse {
	resp := postResponse{
		ID:                 p.ID,
		GroupID:            p.GroupID,
		Description:        textPtr(p.Description),
		Tags:               p.Tags,
		ImageURLs:          p.ImageURLs,
		OrdersLastUpdateAt: timePtr(p.OrdersLastUpdateAt),
		CreatedTime:        timePtr(p.CreatedTime),
		UpdatedTime:        timePtr(p.UpdatedTime),
	}
	if len(p.Items) > 0 {
		_ = json.Unmarshal(p.Items, &resp.Items)
	}
	if isAdmin && p.ImportPrice.Valid {
		s := numericToString(p.ImportPrice)
		resp.ImportPrice = &s
	}
	return resp
}

func isAdminRequest(r *http.Request) bool {
	claims := middleware.ClaimsFromContext(r.Context())
	return claims != nil && claims.Role == enum.RoleAdmin
}

// --- Handlers ---

// List returns the group's posts, newest first, with optional search and
// sorting.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group_id")
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	posts, err := h.store.ListPosts(r.Context(), database.ListPostsParams{
		GroupID: groupID,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort_by"),
		SortDir: q.Get("sort_dir"),
		Limit:   int32(pageSize),
		Offset:  pageOffset(page, pageSize),
	})
	if err != nil {
		log.Error().Err(err).Msg("list posts")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountPosts(r.Context(), groupID, q.Get("search"))
	if err != nil {
		log.Error().Err(err).Msg("count posts")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	isAdmin := isAdminRequest(r)
	resp := make([]postResponse, len(posts))
	for i, p := range posts {
		resp[i] = toPostResponse(p, isAdmin)
	}
	writeJSON(w, http.StatusOK, newListResponse(resp, total, page, pageSize))
}

// Get returns a single post with its order count.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	arg := database.GetPostParams{
		GroupID: chi.URLParam(r, "group_id"),
		ID:      chi.URLParam(r, "post_id"),
	}

	post, err := h.store.GetPost(r.Context(), arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "post not found"})
			return
		}
		log.Error().Err(err).Msg("get post")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orders, err := h.store.ListOrdersByPost(r.Context(), arg)
	if err != nil {
		log.Error().Err(err).Msg("list post orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toPostResponse(post, isAdminRequest(r))
	count := len(orders)
	resp.OrderCount = &count
	writeJSON(w, http.StatusOK, resp)
}

// Update patches a post's editable fields. Import price edits are admin
// only.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	isAdmin := isAdminRequest(r)
	if req.ImportPrice != nil && !isAdmin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin role required to set import_price"})
		return
	}

	arg := database.UpdatePostParams{
		GroupID: chi.URLParam(r, "group_id"),
		ID:      chi.URLParam(r, "post_id"),
	}
	if req.Description != nil {
		arg.Description = pgtype.Text{String: *req.Description, Valid: true}
	}
	if req.Items != nil {
		items, err := json.Marshal(req.Items)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid items"})
			return
		}
		arg.Items = items
	}
	arg.Tags = req.Tags
	arg.ImageURLs = req.ImageURLs
	if req.ImportPrice != nil {
		price, err := decimal.NewFromString(*req.ImportPrice)
		if err != nil || price.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid import_price"})
			return
		}
		var n pgtype.Numeric
		_ = n.Scan(price.StringFixed(0))
		arg.ImportPrice = n
	}

	post, err := h.store.UpdatePost(r.Context(), arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "post not found"})
			return
		}
		log.Error().Err(err).Msg("update post")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(post, isAdmin))
}
