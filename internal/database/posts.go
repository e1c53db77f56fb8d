package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

const postColumns = `id, group_id, description, items, tags, import_price, image_urls, orders_last_update_at, created_time, updated_time`

func scanPost(row interface{ Scan(...any) error }) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.GroupID, &p.Description, &p.Items, &p.Tags, &p.ImportPrice,
		&p.ImageURLs, &p.OrdersLastUpdateAt, &p.CreatedTime, &p.UpdatedTime)
	return p, err
}

var postSortColumns = map[string]string{
	"created_time":          "created_time",
	"updated_time":          "updated_time",
	"orders_last_update_at": "orders_last_update_at",
}

type ListPostsParams struct {
	GroupID string
	Search  string
	SortBy  string
	SortDir string
	Limit   int32
	Offset  int32
}

func (q *Queries) ListPosts(ctx context.Context, arg ListPostsParams) ([]Post, error) {
	col, ok := postSortColumns[arg.SortBy]
	if !ok {
		col = "orders_last_update_at"
	}
	dir := "DESC"
	if arg.SortDir == "asc" {
		dir = "ASC"
	}

	rows, err := q.db.Query(ctx, fmt.Sprintf(
		`SELECT `+postColumns+` FROM posts
		 WHERE group_id = $1
		   AND ($2 = '' OR id = $2 OR description ILIKE '%%' || $2 || '%%')
		 ORDER BY %s %s NULLS LAST
		 LIMIT $3 OFFSET $4`, col, dir),
		arg.GroupID, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) CountPosts(ctx context.Context, groupID, search string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx,
		`SELECT count(*) FROM posts
		 WHERE group_id = $1
		   AND ($2 = '' OR id = $2 OR description ILIKE '%' || $2 || '%')`,
		groupID, search).Scan(&n)
	return n, err
}

type GetPostParams struct {
	GroupID string
	ID      string
}

func (q *Queries) GetPost(ctx context.Context, arg GetPostParams) (Post, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE group_id = $1 AND id = $2`,
		arg.GroupID, arg.ID)
	return scanPost(row)
}

type UpdatePostParams struct {
	GroupID     string
	ID          string
	Description pgtype.Text
	Items       []byte // nil keeps current items
	Tags        []string
	ImportPrice pgtype.Numeric
	ImageURLs   []string
}

// UpdatePost patches the editable post fields; NULL params keep current
// values.
func (q *Queries) UpdatePost(ctx context.Context, arg UpdatePostParams) (Post, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE posts SET
			description = COALESCE($3, description),
			items = COALESCE($4, items),
			tags = COALESCE($5, tags),
			import_price = COALESCE($6, import_price),
			image_urls = COALESCE($7, image_urls),
			updated_time = now()
		 WHERE group_id = $1 AND id = $2
		 RETURNING `+postColumns,
		arg.GroupID, arg.ID, arg.Description, arg.Items, arg.Tags, arg.ImportPrice, arg.ImageURLs)
	return scanPost(row)
}

// TouchPostOrders bumps orders_last_update_at after any order mutation in
// the post.
func (q *Queries) TouchPostOrders(ctx context.Context, arg GetPostParams) error {
	_, err := q.db.Exec(ctx,
		`UPDATE posts SET orders_last_update_at = now() WHERE group_id = $1 AND id = $2`,
		arg.GroupID, arg.ID)
	return err
}
