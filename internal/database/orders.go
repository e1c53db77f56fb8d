package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `order_id, group_id, post_id, comment_id, comment_url, comment_text, comment_created_time,
	customer_url, customer_uid, qty, item_type, currency, unit_price, total_price,
	matched_item, price_calc, status_code, status_history, user_snapshot, note, parsed_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.OrderID, &o.GroupID, &o.PostID, &o.CommentID, &o.CommentURL,
		&o.CommentText, &o.CommentCreatedTime, &o.CustomerURL, &o.CustomerUID,
		&o.Qty, &o.ItemType, &o.Currency, &o.UnitPrice, &o.TotalPrice,
		&o.MatchedItem, &o.PriceCalc, &o.StatusCode, &o.StatusHistory,
		&o.UserSnapshot, &o.Note, &o.ParsedAt)
	return o, err
}

func (q *Queries) queryOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (q *Queries) ListOrdersByPost(ctx context.Context, arg GetPostParams) ([]Order, error) {
	return q.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE group_id = $1 AND post_id = $2
		 ORDER BY parsed_at`,
		arg.GroupID, arg.ID)
}

type GetOrderParams struct {
	GroupID string
	OrderID string
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE group_id = $1 AND order_id = $2`,
		arg.GroupID, arg.OrderID)
	return scanOrder(row)
}

// GetOrderForUpdate locks the row for the rest of the transaction.
// Split and status transitions go through this so two mutations of the
// same order cannot interleave.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE group_id = $1 AND order_id = $2 FOR UPDATE`,
		arg.GroupID, arg.OrderID)
	return scanOrder(row)
}

type CountOrdersByCommentParams struct {
	GroupID   string
	PostID    string
	CommentID string
}

func (q *Queries) CountOrdersByComment(ctx context.Context, arg CountOrdersByCommentParams) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE group_id = $1 AND post_id = $2 AND comment_id = $3`,
		arg.GroupID, arg.PostID, arg.CommentID).Scan(&n)
	return n, err
}

type CreateOrderParams struct {
	OrderID            string
	GroupID            string
	PostID             string
	CommentID          pgtype.Text
	CommentURL         pgtype.Text
	CommentText        pgtype.Text
	CommentCreatedTime pgtype.Timestamptz
	CustomerURL        string
	CustomerUID        string
	Qty                int64
	ItemType           pgtype.Text
	Currency           string
	UnitPrice          pgtype.Numeric
	TotalPrice         pgtype.Numeric
	MatchedItem        []byte
	PriceCalc          []byte
	StatusCode         string
	StatusHistory      []byte
	UserSnapshot       []byte
	Note               pgtype.Text
	ParsedAt           time.Time
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO orders (order_id, group_id, post_id, comment_id, comment_url, comment_text,
			comment_created_time, customer_url, customer_uid, qty, item_type, currency,
			unit_price, total_price, matched_item, price_calc, status_code, status_history,
			user_snapshot, note, parsed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 RETURNING `+orderColumns,
		arg.OrderID, arg.GroupID, arg.PostID, arg.CommentID, arg.CommentURL, arg.CommentText,
		arg.CommentCreatedTime, arg.CustomerURL, arg.CustomerUID, arg.Qty, arg.ItemType,
		arg.Currency, arg.UnitPrice, arg.TotalPrice, arg.MatchedItem, arg.PriceCalc,
		arg.StatusCode, arg.StatusHistory, arg.UserSnapshot, arg.Note, arg.ParsedAt)
	return scanOrder(row)
}

type UpdateOrderStatusParams struct {
	GroupID       string
	OrderID       string
	StatusCode    string
	StatusHistory []byte
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET status_code = $3, status_history = $4
		 WHERE group_id = $1 AND order_id = $2
		 RETURNING `+orderColumns,
		arg.GroupID, arg.OrderID, arg.StatusCode, arg.StatusHistory)
	return scanOrder(row)
}

type UpdateOrderDetailsParams struct {
	GroupID     string
	OrderID     string
	Qty         int64
	ItemType    pgtype.Text
	Note        pgtype.Text
	MatchedItem []byte
	UnitPrice   pgtype.Numeric
	TotalPrice  pgtype.Numeric
	PriceCalc   []byte
}

// UpdateOrderDetails applies an order edit with its already-reconciled
// pricing fields.
func (q *Queries) UpdateOrderDetails(ctx context.Context, arg UpdateOrderDetailsParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET qty = $3, item_type = $4, note = $5, matched_item = $6,
			unit_price = $7, total_price = $8, price_calc = $9
		 WHERE group_id = $1 AND order_id = $2
		 RETURNING `+orderColumns,
		arg.GroupID, arg.OrderID, arg.Qty, arg.ItemType, arg.Note, arg.MatchedItem,
		arg.UnitPrice, arg.TotalPrice, arg.PriceCalc)
	return scanOrder(row)
}

type SetOrderQuantityParams struct {
	GroupID    string
	OrderID    string
	Qty        int64
	TotalPrice pgtype.Numeric
	PriceCalc  []byte
}

// SetOrderQuantity rewrites quantity and the rederived totals; used by the
// split flow for the surviving original order.
func (q *Queries) SetOrderQuantity(ctx context.Context, arg SetOrderQuantityParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET qty = $3, total_price = $4, price_calc = $5
		 WHERE group_id = $1 AND order_id = $2
		 RETURNING `+orderColumns,
		arg.GroupID, arg.OrderID, arg.Qty, arg.TotalPrice, arg.PriceCalc)
	return scanOrder(row)
}

func (q *Queries) DeleteOrder(ctx context.Context, arg GetOrderParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM orders WHERE group_id = $1 AND order_id = $2`,
		arg.GroupID, arg.OrderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- Aggregate queries ---

// AllOrdersRow is an order joined with its post's description for the
// cross-post listing.
type AllOrdersRow struct {
	Order
	PostDescription pgtype.Text
}

var allOrdersSortColumns = map[string]string{
	"parsed_at":            "o.parsed_at",
	"comment_created_time": "o.comment_created_time",
	"status_code":          "o.status_code",
	"qty":                  "o.qty",
	"total_price":          "o.total_price",
}

type ListAllOrdersParams struct {
	GroupID     string
	StatusCodes []string // empty means no status filter
	SortBy      string
	SortDir     string
	Limit       int32
	Offset      int32
}

func (q *Queries) ListAllOrders(ctx context.Context, arg ListAllOrdersParams) ([]AllOrdersRow, error) {
	col, ok := allOrdersSortColumns[arg.SortBy]
	if !ok {
		col = "o.parsed_at"
	}
	dir := "DESC"
	if arg.SortDir == "asc" {
		dir = "ASC"
	}

	rows, err := q.db.Query(ctx, fmt.Sprintf(
		`SELECT `+prefixedOrderColumns+`, p.description
		 FROM orders o
		 JOIN posts p ON p.group_id = o.group_id AND p.id = o.post_id
		 WHERE o.group_id = $1
		   AND (cardinality($2::text[]) = 0 OR o.status_code = ANY($2))
		 ORDER BY %s %s NULLS LAST
		 LIMIT $3 OFFSET $4`, col, dir),
		arg.GroupID, arg.StatusCodes, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAllOrdersRows(rows)
}

func (q *Queries) CountAllOrders(ctx context.Context, groupID string, statusCodes []string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM orders
		 WHERE group_id = $1
		   AND (cardinality($2::text[]) = 0 OR status_code = ANY($2))`,
		groupID, statusCodes).Scan(&n)
	return n, err
}

// ListOrdersByCustomer returns a customer's orders across all posts in the
// group, newest comment first.
type ListOrdersByCustomerParams struct {
	GroupID     string
	CustomerUID string
	Limit       int32
	Offset      int32
}

func (q *Queries) ListOrdersByCustomer(ctx context.Context, arg ListOrdersByCustomerParams) ([]AllOrdersRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+prefixedOrderColumns+`, p.description
		 FROM orders o
		 JOIN posts p ON p.group_id = o.group_id AND p.id = o.post_id
		 WHERE o.group_id = $1 AND o.customer_uid = $2
		 ORDER BY o.comment_created_time DESC NULLS LAST
		 LIMIT $3 OFFSET $4`,
		arg.GroupID, arg.CustomerUID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAllOrdersRows(rows)
}

// CustomerOrderStatsRow aggregates a customer's orders. Revenue excludes
// cancelled orders.
type CustomerOrderStatsRow struct {
	TotalOrders    int64
	TotalRevenue   pgtype.Numeric
	CancelledCount int64
}

func (q *Queries) CustomerOrderStats(ctx context.Context, groupID, customerUID string) (CustomerOrderStatsRow, error) {
	var r CustomerOrderStatsRow
	err := q.db.QueryRow(ctx,
		`SELECT count(*),
			COALESCE(sum(total_price) FILTER (WHERE status_code <> 'CANCELLED'), 0),
			count(*) FILTER (WHERE status_code = 'CANCELLED')
		 FROM orders
		 WHERE group_id = $1 AND customer_uid = $2`,
		groupID, customerUID).Scan(&r.TotalOrders, &r.TotalRevenue, &r.CancelledCount)
	return r, err
}

// CustomerWithOrdersRow is one customer in the customers-with-orders
// aggregate, with order stats from the matching (possibly filtered) set.
type CustomerWithOrdersRow struct {
	CustomerUID       string
	Name              pgtype.Text
	FbUsername        pgtype.Text
	FbURL             pgtype.Text
	PhoneNumber       pgtype.Text
	AvatarURL         pgtype.Text
	Addresses         []string
	OrderCount        int64
	TotalRevenue      pgtype.Numeric
	LatestCommentTime pgtype.Timestamptz
}

var customersWithOrdersSortColumns = map[string]string{
	"order_count":          "order_count",
	"total_revenue":        "total_revenue",
	"name":                 "c.name",
	"fb_uid":               "o.customer_uid",
	"comment_created_time": "latest_comment_time",
}

type ListCustomersWithOrdersParams struct {
	GroupID    string
	Search     string
	ActiveOnly bool // exclude DONE and CANCELLED orders from the aggregate
	SortBy     string
	SortDir    string
	Limit      int32
	Offset     int32
}

func (q *Queries) ListCustomersWithOrders(ctx context.Context, arg ListCustomersWithOrdersParams) ([]CustomerWithOrdersRow, error) {
	col, ok := customersWithOrdersSortColumns[arg.SortBy]
	if !ok {
		col = "order_count"
	}
	dir := "DESC"
	if arg.SortDir == "asc" {
		dir = "ASC"
	}

	rows, err := q.db.Query(ctx, fmt.Sprintf(
		`SELECT o.customer_uid, c.name, c.fb_username, c.fb_url, c.phone_number, c.avatar_url,
			COALESCE(c.addresses, '{}'), count(*) AS order_count,
			COALESCE(sum(o.total_price) FILTER (WHERE o.status_code <> 'CANCELLED'), 0) AS total_revenue,
			max(o.comment_created_time) AS latest_comment_time
		 FROM orders o
		 LEFT JOIN customers c ON c.fb_uid = o.customer_uid
		 WHERE o.group_id = $1 AND o.customer_uid <> ''
		   AND (NOT $2::boolean OR o.status_code NOT IN ('DONE', 'CANCELLED'))
		   AND ($3 = '' OR c.name ILIKE '%%' || $3 || '%%' OR o.customer_uid = $3
			OR c.phone_number ILIKE '%%' || $3 || '%%')
		 GROUP BY o.customer_uid, c.name, c.fb_username, c.fb_url, c.phone_number, c.avatar_url, c.addresses
		 ORDER BY %s %s NULLS LAST
		 LIMIT $4 OFFSET $5`, col, dir),
		arg.GroupID, arg.ActiveOnly, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CustomerWithOrdersRow
	for rows.Next() {
		var r CustomerWithOrdersRow
		if err := rows.Scan(&r.CustomerUID, &r.Name, &r.FbUsername, &r.FbURL, &r.PhoneNumber,
			&r.AvatarURL, &r.Addresses, &r.OrderCount, &r.TotalRevenue, &r.LatestCommentTime); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) CountCustomersWithOrders(ctx context.Context, groupID string, activeOnly bool, search string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT count(DISTINCT o.customer_uid)
		 FROM orders o
		 LEFT JOIN customers c ON c.fb_uid = o.customer_uid
		 WHERE o.group_id = $1 AND o.customer_uid <> ''
		   AND (NOT $2::boolean OR o.status_code NOT IN ('DONE', 'CANCELLED'))
		   AND ($3 = '' OR c.name ILIKE '%' || $3 || '%' OR o.customer_uid = $3
			OR c.phone_number ILIKE '%' || $3 || '%')`,
		groupID, activeOnly, search).Scan(&n)
	return n, err
}

// YearOrderRow carries what the dashboard needs per order: when it was
// parsed, its status, its total and the post's import price.
type YearOrderRow struct {
	ParsedAt    time.Time
	StatusCode  string
	TotalPrice  pgtype.Numeric
	ImportPrice pgtype.Numeric
}

func (q *Queries) ListOrdersForYear(ctx context.Context, groupID string, year int) ([]YearOrderRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT o.parsed_at, o.status_code, o.total_price, p.import_price
		 FROM orders o
		 JOIN posts p ON p.group_id = o.group_id AND p.id = o.post_id
		 WHERE o.group_id = $1 AND date_part('year', o.parsed_at) = $2`,
		groupID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []YearOrderRow
	for rows.Next() {
		var r YearOrderRow
		if err := rows.Scan(&r.ParsedAt, &r.StatusCode, &r.TotalPrice, &r.ImportPrice); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const prefixedOrderColumns = `o.order_id, o.group_id, o.post_id, o.comment_id, o.comment_url, o.comment_text, o.comment_created_time,
	o.customer_url, o.customer_uid, o.qty, o.item_type, o.currency, o.unit_price, o.total_price,
	o.matched_item, o.price_calc, o.status_code, o.status_history, o.user_snapshot, o.note, o.parsed_at`

func collectAllOrdersRows(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]AllOrdersRow, error) {
	var out []AllOrdersRow
	for rows.Next() {
		var r AllOrdersRow
		if err := rows.Scan(&r.OrderID, &r.GroupID, &r.PostID, &r.CommentID, &r.CommentURL,
			&r.CommentText, &r.CommentCreatedTime, &r.CustomerURL, &r.CustomerUID,
			&r.Qty, &r.ItemType, &r.Currency, &r.UnitPrice, &r.TotalPrice,
			&r.MatchedItem, &r.PriceCalc, &r.StatusCode, &r.StatusHistory,
			&r.UserSnapshot, &r.Note, &r.ParsedAt, &r.PostDescription); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
