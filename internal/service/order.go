package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/enum"
	"github.com/minhmom/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrInvalidQuantity  = errors.New("qty must be > 0")
	ErrInvalidStatus    = errors.New("unknown status_code")
	ErrDuplicateComment = errors.New("an order for this comment already exists")
	ErrOrderNotFound    = errors.New("order not found")
	ErrPostNotFound     = errors.New("post not found")
	ErrInvalidSplitQty  = errors.New("split qty must be greater than 0 and less than the order qty")
	ErrMissingCustomer  = errors.New("customer_url is required")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order service needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetPost(ctx context.Context, arg database.GetPostParams) (database.Post, error)
	GetStatus(ctx context.Context, statusCode string) (database.Status, error)
	CountOrdersByComment(ctx context.Context, arg database.CountOrdersByCommentParams) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderDetails(ctx context.Context, arg database.UpdateOrderDetailsParams) (database.Order, error)
	SetOrderQuantity(ctx context.Context, arg database.SetOrderQuantityParams) (database.Order, error)
	DeleteOrder(ctx context.Context, arg database.GetOrderParams) (int64, error)
	TouchPostOrders(ctx context.Context, arg database.GetPostParams) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// StatusEntry is one element of an order's status history.
type StatusEntry struct {
	StatusCode string    `json:"status_code"`
	Note       string    `json:"note,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	At         time.Time `json:"at"`
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	GroupID            string
	PostID             string
	CommentID          string
	CommentURL         string
	CommentText        string
	CommentCreatedTime string // RFC3339, optional
	CustomerURL        string
	CustomerUID        string
	CustomerName       string
	Qty                int64
	ItemType           string
	UnitPrice          decimal.Decimal
	StatusCode         string
	Note               string
	Actor              string
}

// UpdateOrderRequest carries an order edit. Pricing is rederived from
// the final qty and unit price.
type UpdateOrderRequest struct {
	GroupID   string
	OrderID   string
	Qty       *int64
	ItemType  *string
	Note      *string
	UnitPrice *decimal.Decimal
}

// SplitResult holds both halves of a split order.
type SplitResult struct {
	Original database.Order
	Split    database.Order
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// orderID derives the stable order identifier from the source comment.
// Manual orders (no comment) get a random middle component instead.
func orderID(postID, commentID, customerUID string) string {
	if commentID == "" {
		commentID = uuid.NewString()
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%s:%s", postID, commentID, customerUID)))
	return hex.EncodeToString(sum[:])
}

// CreateOrder validates, prices and inserts an order atomically.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*database.Order, error) {
	if req.Qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if req.CustomerURL == "" {
		return nil, ErrMissingCustomer
	}
	if req.StatusCode == "" {
		req.StatusCode = enum.StatusNew
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	post, err := store.GetPost(ctx, database.GetPostParams{GroupID: req.GroupID, ID: req.PostID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	if _, err := store.GetStatus(ctx, req.StatusCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStatus
		}
		return nil, fmt.Errorf("get status: %w", err)
	}

	if req.CommentID != "" {
		n, err := store.CountOrdersByComment(ctx, database.CountOrdersByCommentParams{
			GroupID:   req.GroupID,
			PostID:    req.PostID,
			CommentID: req.CommentID,
		})
		if err != nil {
			return nil, fmt.Errorf("count orders by comment: %w", err)
		}
		if n > 0 {
			return nil, ErrDuplicateComment
		}
	}

	// Match the post's catalog item for the requested type, then price.
	var items []pricing.Item
	if len(post.Items) > 0 {
		if err := json.Unmarshal(post.Items, &items); err != nil {
			return nil, fmt.Errorf("decode post items: %w", err)
		}
	}
	matched := pricing.PickItem(items, req.ItemType)

	unitPrice := req.UnitPrice
	calc := pricing.CalcForOrder(matched, unitPrice, req.Qty)

	matchedJSON := []byte("null")
	if matched != nil {
		if matchedJSON, err = json.Marshal(matched); err != nil {
			return nil, fmt.Errorf("encode matched item: %w", err)
		}
	}
	calcJSON, err := json.Marshal(calc)
	if err != nil {
		return nil, fmt.Errorf("encode price calc: %w", err)
	}

	now := time.Now().UTC()
	history, err := json.Marshal([]StatusEntry{{
		StatusCode: req.StatusCode,
		Note:       req.Note,
		Actor:      req.Actor,
		At:         now,
	}})
	if err != nil {
		return nil, fmt.Errorf("encode status history: %w", err)
	}

	snapshot, err := json.Marshal(map[string]string{
		"url":  req.CustomerURL,
		"uid":  req.CustomerUID,
		"name": req.CustomerName,
	})
	if err != nil {
		return nil, fmt.Errorf("encode user snapshot: %w", err)
	}

	commentTime := pgtype.Timestamptz{}
	if req.CommentCreatedTime != "" {
		t, err := time.Parse(time.RFC3339, req.CommentCreatedTime)
		if err != nil {
			return nil, fmt.Errorf("invalid comment_created_time: %w", err)
		}
		commentTime = pgtype.Timestamptz{Time: t, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderID:            orderID(req.PostID, req.CommentID, req.CustomerUID),
		GroupID:            req.GroupID,
		PostID:             req.PostID,
		CommentID:          textOrNull(req.CommentID),
		CommentURL:         textOrNull(req.CommentURL),
		CommentText:        textOrNull(req.CommentText),
		CommentCreatedTime: commentTime,
		CustomerURL:        req.CustomerURL,
		CustomerUID:        req.CustomerUID,
		Qty:                req.Qty,
		ItemType:           textOrNull(req.ItemType),
		Currency:           enum.DefaultCurrency,
		UnitPrice:          decimalToNumeric(unitPrice),
		TotalPrice:         decimalToNumeric(calc.Total),
		MatchedItem:        matchedJSON,
		PriceCalc:          calcJSON,
		StatusCode:         req.StatusCode,
		StatusHistory:      history,
		UserSnapshot:       snapshot,
		Note:               textOrNull(req.Note),
		ParsedAt:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := store.TouchPostOrders(ctx, database.GetPostParams{GroupID: req.GroupID, ID: req.PostID}); err != nil {
		return nil, fmt.Errorf("touch post: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, nil
}

// UpdateStatus moves an order to a new status and appends to its history.
func (s *OrderService) UpdateStatus(ctx context.Context, groupID, orderIDStr, statusCode, note, actor string) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetStatus(ctx, statusCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStatus
		}
		return nil, fmt.Errorf("get status: %w", err)
	}

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{GroupID: groupID, OrderID: orderIDStr})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	history, err := appendHistory(order.StatusHistory, StatusEntry{
		StatusCode: statusCode,
		Note:       note,
		Actor:      actor,
		At:         time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		GroupID:       groupID,
		OrderID:       orderIDStr,
		StatusCode:    statusCode,
		StatusHistory: history,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := store.TouchPostOrders(ctx, database.GetPostParams{GroupID: groupID, ID: order.PostID}); err != nil {
		return nil, fmt.Errorf("touch post: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// UpdateOrder applies an edit and rederives unit/total pricing from the
// resulting qty and unit price. Bundle pricing applies when the matched
// item carries packs, flat multiplication otherwise.
func (s *OrderService) UpdateOrder(ctx context.Context, req UpdateOrderRequest) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{GroupID: req.GroupID, OrderID: req.OrderID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	qty := order.Qty
	if req.Qty != nil {
		if *req.Qty <= 0 {
			return nil, ErrInvalidQuantity
		}
		qty = *req.Qty
	}
	itemType := order.ItemType
	matchedJSON := order.MatchedItem
	matched := decodeMatchedItem(order.MatchedItem)
	if req.ItemType != nil && *req.ItemType != order.ItemType.String {
		itemType = textOrNull(*req.ItemType)

		// Re-match against the post catalog for the new type.
		post, err := store.GetPost(ctx, database.GetPostParams{GroupID: req.GroupID, ID: order.PostID})
		if err != nil {
			return nil, fmt.Errorf("get post: %w", err)
		}
		var items []pricing.Item
		if len(post.Items) > 0 {
			if err := json.Unmarshal(post.Items, &items); err != nil {
				return nil, fmt.Errorf("decode post items: %w", err)
			}
		}
		matched = pricing.PickItem(items, *req.ItemType)
		matchedJSON = []byte("null")
		if matched != nil {
			if matchedJSON, err = json.Marshal(matched); err != nil {
				return nil, fmt.Errorf("encode matched item: %w", err)
			}
		}
	}
	note := order.Note
	if req.Note != nil {
		note = textOrNull(*req.Note)
	}
	unitPrice := numericToDecimal(order.UnitPrice)
	if req.UnitPrice != nil {
		unitPrice = req.UnitPrice.Round(0)
	}

	calc := pricing.CalcForOrder(matched, unitPrice, qty)
	calcJSON, err := json.Marshal(calc)
	if err != nil {
		return nil, fmt.Errorf("encode price calc: %w", err)
	}

	updated, err := store.UpdateOrderDetails(ctx, database.UpdateOrderDetailsParams{
		GroupID:     req.GroupID,
		OrderID:     req.OrderID,
		Qty:         qty,
		ItemType:    itemType,
		Note:        note,
		MatchedItem: matchedJSON,
		UnitPrice:   decimalToNumeric(unitPrice),
		TotalPrice:  decimalToNumeric(calc.Total),
		PriceCalc:   calcJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := store.TouchPostOrders(ctx, database.GetPostParams{GroupID: req.GroupID, ID: order.PostID}); err != nil {
		return nil, fmt.Errorf("touch post: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// Split divides an order into two. The original keeps qty-splitQty, the
// new order gets splitQty and the given status (NEW when empty); both
// totals are rederived independently so bundle pricing applies to each
// part on its own.
func (s *OrderService) Split(ctx context.Context, groupID, orderIDStr string, splitQty int64, statusCode, actor string) (*SplitResult, error) {
	if statusCode == "" {
		statusCode = enum.StatusNew
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetStatus(ctx, statusCode); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStatus
		}
		return nil, fmt.Errorf("get status: %w", err)
	}

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{GroupID: groupID, OrderID: orderIDStr})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if splitQty <= 0 || splitQty >= order.Qty {
		return nil, ErrInvalidSplitQty
	}

	matched := decodeMatchedItem(order.MatchedItem)
	unitPrice := numericToDecimal(order.UnitPrice)
	now := time.Now().UTC()

	remainQty := order.Qty - splitQty
	remainCalc := pricing.CalcForOrder(matched, unitPrice, remainQty)
	remainCalcJSON, err := json.Marshal(remainCalc)
	if err != nil {
		return nil, fmt.Errorf("encode price calc: %w", err)
	}

	original, err := store.SetOrderQuantity(ctx, database.SetOrderQuantityParams{
		GroupID:    groupID,
		OrderID:    orderIDStr,
		Qty:        remainQty,
		TotalPrice: decimalToNumeric(remainCalc.Total),
		PriceCalc:  remainCalcJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("shrink original order: %w", err)
	}

	splitCalc := pricing.CalcForOrder(matched, unitPrice, splitQty)
	splitCalcJSON, err := json.Marshal(splitCalc)
	if err != nil {
		return nil, fmt.Errorf("encode price calc: %w", err)
	}

	history, err := appendHistory(order.StatusHistory, StatusEntry{
		StatusCode: statusCode,
		Note:       fmt.Sprintf("split %d from %s", splitQty, order.OrderID),
		Actor:      actor,
		At:         now,
	})
	if err != nil {
		return nil, err
	}

	// The split half is a fresh order; comment_id stays on the original
	// so the per-comment uniqueness holds.
	split, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderID:            orderID(order.PostID, "", order.CustomerUID),
		GroupID:            groupID,
		PostID:             order.PostID,
		CommentID:          pgtype.Text{},
		CommentURL:         order.CommentURL,
		CommentText:        order.CommentText,
		CommentCreatedTime: order.CommentCreatedTime,
		CustomerURL:        order.CustomerURL,
		CustomerUID:        order.CustomerUID,
		Qty:                splitQty,
		ItemType:           order.ItemType,
		Currency:           order.Currency,
		UnitPrice:          order.UnitPrice,
		TotalPrice:         decimalToNumeric(splitCalc.Total),
		MatchedItem:        order.MatchedItem,
		PriceCalc:          splitCalcJSON,
		StatusCode:         statusCode,
		StatusHistory:      history,
		UserSnapshot:       order.UserSnapshot,
		Note:               order.Note,
		ParsedAt:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("create split order: %w", err)
	}

	if err := store.TouchPostOrders(ctx, database.GetPostParams{GroupID: groupID, ID: order.PostID}); err != nil {
		return nil, fmt.Errorf("touch post: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &SplitResult{Original: original, Split: split}, nil
}

// Delete removes an order.
func (s *OrderService) Delete(ctx context.Context, groupID, orderIDStr string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{GroupID: groupID, OrderID: orderIDStr})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}

	n, err := store.DeleteOrder(ctx, database.GetOrderParams{GroupID: groupID, OrderID: orderIDStr})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}

	if err := store.TouchPostOrders(ctx, database.GetPostParams{GroupID: groupID, ID: order.PostID}); err != nil {
		return fmt.Errorf("touch post: %w", err)
	}

	return tx.Commit(ctx)
}

// --- Helpers ---

func appendHistory(raw []byte, entry StatusEntry) ([]byte, error) {
	var history []StatusEntry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &history); err != nil {
			return nil, fmt.Errorf("decode status history: %w", err)
		}
	}
	history = append(history, entry)
	out, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encode status history: %w", err)
	}
	return out, nil
}

func decodeMatchedItem(raw []byte) *pricing.Item {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var item pricing.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil
	}
	return &item
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(0))
	return n
}
