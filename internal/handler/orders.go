package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/middleware"
	"github.com/minhmom/api/internal/pricing"
	"github.com/minhmom/api/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// OrderReadStore defines the read-only database methods order handlers
// use directly. Mutations go through the order service.
type OrderReadStore interface {
	ListOrdersByPost(ctx context.Context, arg database.GetPostParams) ([]database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListAllOrders(ctx context.Context, arg database.ListAllOrdersParams) ([]database.AllOrdersRow, error)
	CountAllOrders(ctx context.Context, groupID string, statusCodes []string) (int64, error)
	ListStatuses(ctx context.Context, active pgtype.Bool) ([]database.Status, error)
}

// OrderMutator is the slice of the order service the handlers need.
// Satisfied by *service.OrderService.
type OrderMutator interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*database.Order, error)
	UpdateStatus(ctx context.Context, groupID, orderID, statusCode, note, actor string) (*database.Order, error)
	UpdateOrder(ctx context.Context, req service.UpdateOrderRequest) (*database.Order, error)
	Split(ctx context.Context, groupID, orderID string, splitQty int64, statusCode, actor string) (*service.SplitResult, error)
	Delete(ctx context.Context, groupID, orderID string) error
}

// OrderNotifier pushes order change events to connected clients.
type OrderNotifier interface {
	NotifyOrderChange(groupID, postID, orderID, action string)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	store    OrderReadStore
	svc      OrderMutator
	notifier OrderNotifier
}

// NewOrderHandler creates a new OrderHandler. notifier may be nil.
func NewOrderHandler(store OrderReadStore, svc OrderMutator, notifier OrderNotifier) *OrderHandler {
	return &OrderHandler{store: store, svc: svc, notifier: notifier}
}

// RegisterRoutes registers order endpoints. Mounted under /groups/{group_id}.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.ListAll)
	r.Route("/posts/{post_id}/orders", func(r chi.Router) {
		r.Get("/", h.ListByPost)
		r.Post("/", h.Create)
	})
	r.Route("/orders/{order_id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Patch("/status", h.UpdateStatus)
		r.Post("/split", h.Split)
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	CommentID          string `json:"comment_id"`
	CommentURL         string `json:"comment_url"`
	CommentText        string `json:"comment_text"`
	CommentCreatedTime string `json:"comment_created_time"`
	CustomerURL        string `json:"customer_url"`
	CustomerUID        string `json:"customer_uid"`
	CustomerName       string `json:"customer_name"`
	Qty                int64  `json:"qty"`
	ItemType           string `json:"item_type"`
	UnitPrice          string `json:"unit_price"`
	StatusCode         string `json:"status_code"`
	Note               string `json:"note"`
}

type updateOrderRequest struct {
	Qty       *int64  `json:"qty"`
	ItemType  *string `json:"item_type"`
	Note      *string `json:"note"`
	UnitPrice *string `json:"unit_price"`
}

type updateStatusRequest struct {
	StatusCode string `json:"status_code"`
	Note       string `json:"note"`
}

type splitOrderRequest struct {
	Qty        int64  `json:"qty"`
	StatusCode string `json:"status_code"`
}

type orderResponse struct {
	OrderID            string          `json:"order_id"`
	PostID             string          `json:"post_id"`
	PostDescription    *string         `json:"post_description,omitempty"`
	CommentID          *string         `json:"comment_id"`
	CommentURL         *string         `json:"comment_url"`
	CommentText        *string         `json:"comment_text"`
	CommentCreatedTime *string         `json:"comment_created_time"`
	CustomerURL        string          `json:"customer_url"`
	CustomerUID        string          `json:"customer_uid"`
	Qty                int64           `json:"qty"`
	ItemType           *string         `json:"item_type"`
	Currency           string          `json:"currency"`
	UnitPrice          string          `json:"unit_price"`
	TotalPrice         string          `json:"total_price"`
	TotalPriceDisplay  string          `json:"total_price_display"`
	MatchedItem        json.RawMessage `json:"matched_item"`
	PriceCalc          json.RawMessage `json:"price_calc"`
	StatusCode         string          `json:"status_code"`
	StatusHistory      json.RawMessage `json:"status_history"`
	UserSnapshot       json.RawMessage `json:"user"`
	Note               *string         `json:"note"`
	ParsedAt           string          `json:"parsed_at"`
}

type splitOrderResponse struct {
	Original orderResponse `json:"original"`
	Split    orderResponse `json:"split"`
}

func toOrderResponse(o database.Order) orderResponse {
	total := numericToString(o.TotalPrice)
	totalDec, _ := decimal.NewFromString(total)
	return orderResponse{
		OrderID:            o.OrderID,
		PostID:             o.PostID,
		CommentID:          textPtr(o.CommentID),
		CommentURL:         textPtr(o.CommentURL),
		CommentText:        textPtr(o.CommentText),
		CommentCreatedTime: timePtr(o.CommentCreatedTime),
		CustomerURL:        o.CustomerURL,
		CustomerUID:        o.CustomerUID,
		Qty:                o.Qty,
		ItemType:           textPtr(o.ItemType),
		Currency:           o.Currency,
		UnitPrice:          numericToString(o.UnitPrice),
		TotalPrice:         total,
		TotalPriceDisplay:  pricing.FormatMoney(totalDec),
		MatchedItem:        rawOrNull(o.MatchedItem),
		PriceCalc:          rawOrNull(o.PriceCalc),
		StatusCode:         o.StatusCode,
		StatusHistory:      rawOrNull(o.StatusHistory),
		UserSnapshot:       rawOrNull(o.UserSnapshot),
		Note:               textPtr(o.Note),
		ParsedAt:           o.ParsedAt.UTC().Format(time.RFC3339),
	}
}

func toAllOrdersResponse(r database.AllOrdersRow) orderResponse {
	resp := toOrderResponse(r.Order)
	resp.PostDescription = textPtr(r.PostDescription)
	return resp
}

func rawOrNull(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}

func actorFromContext(ctx context.Context) string {
	if claims := middleware.ClaimsFromContext(ctx); claims != nil {
		return claims.Username
	}
	return ""
}

// writeServiceError maps order service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrPostNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicateComment):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidSplitQty),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrMissingCustomer):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("order service")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (h *OrderHandler) notify(groupID, postID, orderID, action string) {
	if h.notifier != nil {
		h.notifier.NotifyOrderChange(groupID, postID, orderID, action)
	}
}

// --- Handlers ---

// ListByPost returns every order under one post, oldest first.
func (h *OrderHandler) ListByPost(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrdersByPost(r.Context(), database.GetPostParams{
		GroupID: chi.URLParam(r, "group_id"),
		ID:      chi.URLParam(r, "post_id"),
	})
	if err != nil {
		log.Error().Err(err).Msg("list post orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAll returns orders across every post in the group. Without an
// explicit status selection it hides DONE and CANCELLED orders; pass
// all=true for the unfiltered view.
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group_id")
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	var statusCodes []string
	if s := q.Get("status"); s != "" {
		for _, code := range strings.Split(s, ",") {
			if code = strings.TrimSpace(code); code != "" {
				statusCodes = append(statusCodes, code)
			}
		}
	}
	if len(statusCodes) == 0 && q.Get("all") != "true" {
		statuses, err := h.store.ListStatuses(r.Context(), pgtype.Bool{})
		if err != nil {
			log.Error().Err(err).Msg("list statuses")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		statusCodes = service.DefaultStatusFilter(statuses)
	}
	if statusCodes == nil {
		statusCodes = []string{}
	}

	orders, err := h.store.ListAllOrders(r.Context(), database.ListAllOrdersParams{
		GroupID:     groupID,
		StatusCodes: statusCodes,
		SortBy:      q.Get("sort_by"),
		SortDir:     q.Get("sort_dir"),
		Limit:       int32(pageSize),
		Offset:      pageOffset(page, pageSize),
	})
	if err != nil {
		log.Error().Err(err).Msg("list all orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountAllOrders(r.Context(), groupID, statusCodes)
	if err != nil {
		log.Error().Err(err).Msg("count all orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toAllOrdersResponse(o)
	}
	writeJSON(w, http.StatusOK, newListResponse(resp, total, page, pageSize))
}

// Get returns one order.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		GroupID: chi.URLParam(r, "group_id"),
		OrderID: chi.URLParam(r, "order_id"),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Error().Err(err).Msg("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Create adds an order to a post.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	groupID := chi.URLParam(r, "group_id")
	postID := chi.URLParam(r, "post_id")

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		GroupID:            groupID,
		PostID:             postID,
		CommentID:          req.CommentID,
		CommentURL:         req.CommentURL,
		CommentText:        req.CommentText,
		CommentCreatedTime: req.CommentCreatedTime,
		CustomerURL:        req.CustomerURL,
		CustomerUID:        req.CustomerUID,
		CustomerName:       req.CustomerName,
		Qty:                req.Qty,
		ItemType:           req.ItemType,
		UnitPrice:          pricing.ParseMoney(req.UnitPrice),
		StatusCode:         req.StatusCode,
		Note:               req.Note,
		Actor:              actorFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.notify(groupID, postID, order.OrderID, "created")
	writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

// Update patches an order's editable fields and reprices it.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	groupID := chi.URLParam(r, "group_id")
	arg := service.UpdateOrderRequest{
		GroupID:  groupID,
		OrderID:  chi.URLParam(r, "order_id"),
		Qty:      req.Qty,
		ItemType: req.ItemType,
		Note:     req.Note,
	}
	if req.UnitPrice != nil {
		price := pricing.ParseMoney(*req.UnitPrice)
		arg.UnitPrice = &price
	}

	order, err := h.svc.UpdateOrder(r.Context(), arg)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.notify(groupID, order.PostID, order.OrderID, "updated")
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// UpdateStatus moves an order to a new status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.StatusCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status_code is required"})
		return
	}

	groupID := chi.URLParam(r, "group_id")
	order, err := h.svc.UpdateStatus(r.Context(), groupID, chi.URLParam(r, "order_id"),
		req.StatusCode, req.Note, actorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.notify(groupID, order.PostID, order.OrderID, "status_changed")
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// Split divides an order in two.
func (h *OrderHandler) Split(w http.ResponseWriter, r *http.Request) {
	var req splitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	groupID := chi.URLParam(r, "group_id")
	res, err := h.svc.Split(r.Context(), groupID, chi.URLParam(r, "order_id"),
		req.Qty, req.StatusCode, actorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.notify(groupID, res.Original.PostID, res.Original.OrderID, "split")
	writeJSON(w, http.StatusOK, splitOrderResponse{
		Original: toOrderResponse(res.Original),
		Split:    toOrderResponse(res.Split),
	})
}

// Delete removes an order.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group_id")
	orderID := chi.URLParam(r, "order_id")

	if err := h.svc.Delete(r.Context(), groupID, orderID); err != nil {
		writeServiceError(w, err)
		return
	}

	h.notify(groupID, "", orderID, "deleted")
	w.WriteHeader(http.StatusNoContent)
}
