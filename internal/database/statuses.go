package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const statusColumns = `id, status_code, display_name, description, is_active, view_order`

func scanStatus(row interface{ Scan(...any) error }) (Status, error) {
	var s Status
	err := row.Scan(&s.ID, &s.StatusCode, &s.DisplayName, &s.Description, &s.IsActive, &s.ViewOrder)
	return s, err
}

// ListStatuses returns statuses ordered by view_order (nulls last). When
// active is valid only statuses matching that flag are returned.
func (q *Queries) ListStatuses(ctx context.Context, active pgtype.Bool) ([]Status, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+statusColumns+` FROM statuses
		 WHERE ($1::boolean IS NULL OR is_active = $1)
		 ORDER BY view_order NULLS LAST, status_code`,
		active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Status
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) GetStatus(ctx context.Context, statusCode string) (Status, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+statusColumns+` FROM statuses WHERE status_code = $1`, statusCode)
	return scanStatus(row)
}

type CreateStatusParams struct {
	StatusCode  string
	DisplayName string
	Description pgtype.Text
	IsActive    bool
	ViewOrder   pgtype.Int4
}

func (q *Queries) CreateStatus(ctx context.Context, arg CreateStatusParams) (Status, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO statuses (status_code, display_name, description, is_active, view_order)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+statusColumns,
		arg.StatusCode, arg.DisplayName, arg.Description, arg.IsActive, arg.ViewOrder)
	return scanStatus(row)
}

type UpdateStatusParams struct {
	StatusCode  string
	DisplayName string
	Description pgtype.Text
	IsActive    bool
	ViewOrder   pgtype.Int4
}

func (q *Queries) UpdateStatus(ctx context.Context, arg UpdateStatusParams) (Status, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE statuses
		 SET display_name = $2, description = $3, is_active = $4, view_order = $5
		 WHERE status_code = $1
		 RETURNING `+statusColumns,
		arg.StatusCode, arg.DisplayName, arg.Description, arg.IsActive, arg.ViewOrder)
	return scanStatus(row)
}

// DeleteStatus removes a status and reports how many rows went away.
func (q *Queries) DeleteStatus(ctx context.Context, statusCode string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM statuses WHERE status_code = $1`, statusCode)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
