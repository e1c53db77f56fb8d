package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, fb_uid, fb_username, name, fb_url, addresses, phone_number, avatar_url, notes, is_active, created_date`

func scanCustomer(row interface{ Scan(...any) error }) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.FbUID, &c.FbUsername, &c.Name, &c.FbURL, &c.Addresses,
		&c.PhoneNumber, &c.AvatarURL, &c.Notes, &c.IsActive, &c.CreatedDate)
	return c, err
}

// Sortable customer columns; anything else falls back to name.
var customerSortColumns = map[string]string{
	"name":         "name",
	"fb_uid":       "fb_uid",
	"fb_username":  "fb_username",
	"phone_number": "phone_number",
	"created_date": "created_date",
}

type ListCustomersParams struct {
	Search  string
	SortBy  string
	SortDir string
	Limit   int32
	Offset  int32
}

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	col, ok := customerSortColumns[arg.SortBy]
	if !ok {
		col = "name"
	}
	dir := "ASC"
	if arg.SortDir == "desc" {
		dir = "DESC"
	}

	rows, err := q.db.Query(ctx, fmt.Sprintf(
		`SELECT `+customerColumns+` FROM customers
		 WHERE $1 = '' OR fb_uid = $1 OR fb_username = $1 OR name ILIKE '%%' || $1 || '%%'
		 ORDER BY %s %s NULLS LAST
		 LIMIT $2 OFFSET $3`, col, dir),
		arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CountCustomers(ctx context.Context, search string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM customers
		 WHERE $1 = '' OR fb_uid = $1 OR fb_username = $1 OR name ILIKE '%' || $1 || '%'`,
		search).Scan(&n)
	return n, err
}

func (q *Queries) GetCustomerByUID(ctx context.Context, fbUID string) (Customer, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE fb_uid = $1`, fbUID)
	return scanCustomer(row)
}

type UpsertCustomerParams struct {
	FbUID       string
	FbUsername  pgtype.Text
	Name        pgtype.Text
	FbURL       pgtype.Text
	Addresses   []string
	PhoneNumber pgtype.Text
	AvatarURL   pgtype.Text
	Notes       pgtype.Text
	IsActive    bool
}

// UpsertCustomer inserts or fully replaces the customer keyed by fb_uid,
// mirroring the admin "create user" screen which overwrites on conflict.
func (q *Queries) UpsertCustomer(ctx context.Context, arg UpsertCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO customers (fb_uid, fb_username, name, fb_url, addresses, phone_number, avatar_url, notes, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (fb_uid) DO UPDATE SET
			fb_username = EXCLUDED.fb_username,
			name = EXCLUDED.name,
			fb_url = EXCLUDED.fb_url,
			addresses = EXCLUDED.addresses,
			phone_number = EXCLUDED.phone_number,
			avatar_url = EXCLUDED.avatar_url,
			notes = EXCLUDED.notes,
			is_active = EXCLUDED.is_active
		 RETURNING `+customerColumns,
		arg.FbUID, arg.FbUsername, arg.Name, arg.FbURL, arg.Addresses,
		arg.PhoneNumber, arg.AvatarURL, arg.Notes, arg.IsActive)
	return scanCustomer(row)
}

type UpdateCustomerParams struct {
	FbUID       string
	Name        pgtype.Text
	PhoneNumber pgtype.Text
	Notes       pgtype.Text
	Addresses   []string // nil leaves addresses untouched
}

// UpdateCustomer patches the editable contact fields; NULL params keep the
// current value.
func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE customers SET
			name = COALESCE($2, name),
			phone_number = COALESCE($3, phone_number),
			notes = COALESCE($4, notes),
			addresses = COALESCE($5, addresses)
		 WHERE fb_uid = $1
		 RETURNING `+customerColumns,
		arg.FbUID, arg.Name, arg.PhoneNumber, arg.Notes, arg.Addresses)
	return scanCustomer(row)
}

func (q *Queries) DeleteCustomer(ctx context.Context, fbUID string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM customers WHERE fb_uid = $1`, fbUID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SearchCustomersByName powers the order-edit dropdown: case-insensitive
// name match, name order, capped.
func (q *Queries) SearchCustomersByName(ctx context.Context, name string, limit int32) ([]Customer, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+customerColumns+` FROM customers
		 WHERE name ILIKE '%' || $1 || '%'
		 ORDER BY name
		 LIMIT $2`,
		name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
