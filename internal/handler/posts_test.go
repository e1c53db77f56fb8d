package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/enum"
	"github.com/minhmom/api/internal/handler"
)

// --- Mock store ---

type postKey struct{ groupID, id string }

type mockPostStore struct {
	posts  map[postKey]database.Post
	orders map[postKey][]database.Order
}

func newMockPostStore() *mockPostStore {
	return &mockPostStore{
		posts:  make(map[postKey]database.Post),
		orders: make(map[postKey][]database.Order),
	}
}

func (m *mockPostStore) ListPosts(_ context.Context, arg database.ListPostsParams) ([]database.Post, error) {
	var result []database.Post
	for _, p := range m.posts {
		if p.GroupID == arg.GroupID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPostStore) CountPosts(_ context.Context, groupID, _ string) (int64, error) {
	var n int64
	for _, p := range m.posts {
		if p.GroupID == groupID {
			n++
		}
	}
	return n, nil
}

func (m *mockPostStore) GetPost(_ context.Context, arg database.GetPostParams) (database.Post, error) {
	p, ok := m.posts[postKey{arg.GroupID, arg.ID}]
	if !ok {
		return database.Post{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockPostStore) UpdatePost(_ context.Context, arg database.UpdatePostParams) (database.Post, error) {
	key := postKey{arg.GroupID, arg.ID}
	p, ok := m.posts[key]
	if !ok {
		return database.Post{}, pgx.ErrNoRows
	}
	if arg.Description.Valid {
		p.Description = arg.Description
	}
	if arg.Items != nil {
		p.Items = arg.Items
	}
	if arg.Tags != nil {
		p.Tags = arg.Tags
	}
	if arg.ImportPrice.Valid {
		p.ImportPrice = arg.ImportPrice
	}
	if arg.ImageURLs != nil {
		p.ImageURLs = arg.ImageURLs
	}
	m.posts[key] = p
	return p, nil
}

func (m *mockPostStore) ListOrdersByPost(_ context.Context, arg database.GetPostParams) ([]database.Order, error) {
	return m.orders[postKey{arg.GroupID, arg.ID}], nil
}

// --- Helpers ---

func setupPostRouter(store *mockPostStore, role string) *chi.Mux {
	h := handler.NewPostHandler(store)
	r := chi.NewRouter()
	r.Use(asRole("tester", role))
	r.Route("/groups/{group_id}", h.RegisterRoutes)
	return r
}

func samplePost() database.Post {
	var price pgtype.Numeric
	_ = price.Scan("120000")
	return database.Post{
		ID:          "p1",
		GroupID:     "g1",
		Description: pgtype.Text{String: "Hàng mới về", Valid: true},
		Items:       []byte(`[{"name":"Áo thun","type":"áo","prices":[]}]`),
		ImportPrice: price,
	}
}

// --- Tests ---

func TestPostGet_AdminSeesImportPrice(t *testing.T) {
	store := newMockPostStore()
	store.posts[postKey{"g1", "p1"}] = samplePost()
	router := setupPostRouter(store, enum.RoleAdmin)

	rr := doRequest(t, router, "GET", "/groups/g1/posts/p1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeMap(t, rr)
	if resp["import_price"] != "120000" {
		t.Errorf("import_price = %v, want 120000", resp["import_price"])
	}
}

func TestPostGet_UserDoesNotSeeImportPrice(t *testing.T) {
	store := newMockPostStore()
	store.posts[postKey{"g1", "p1"}] = samplePost()
	router := setupPostRouter(store, enum.RoleUser)

	rr := doRequest(t, router, "GET", "/groups/g1/posts/p1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	resp := decodeMap(t, rr)
	if _, present := resp["import_price"]; present {
		t.Errorf("import_price leaked to non-admin: %v", resp["import_price"])
	}
}

func TestPostGet_NotFound(t *testing.T) {
	router := setupPostRouter(newMockPostStore(), enum.RoleAdmin)

	rr := doRequest(t, router, "GET", "/groups/g1/posts/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestPostUpdate_ImportPriceRequiresAdmin(t *testing.T) {
	store := newMockPostStore()
	store.posts[postKey{"g1", "p1"}] = samplePost()
	router := setupPostRouter(store, enum.RoleUser)

	rr := doRequest(t, router, "PATCH", "/groups/g1/posts/p1", map[string]interface{}{
		"import_price": "99000",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestPostUpdate_Description(t *testing.T) {
	store := newMockPostStore()
	store.posts[postKey{"g1", "p1"}] = samplePost()
	router := setupPostRouter(store, enum.RoleUser)

	rr := doRequest(t, router, "PATCH", "/groups/g1/posts/p1", map[string]interface{}{
		"description": "updated",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeMap(t, rr)
	if resp["description"] != "updated" {
		t.Errorf("description = %v", resp["description"])
	}
}

func TestPostUpdate_InvalidImportPrice(t *testing.T) {
	store := newMockPostStore()
	store.posts[postKey{"g1", "p1"}] = samplePost()
	router := setupPostRouter(store, enum.RoleAdmin)

	rr := doRequest(t, router, "PATCH", "/groups/g1/posts/p1", map[string]interface{}{
		"import_price": "-5",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPostList_Pagination(t *testing.T) {
	store := newMockPostStore()
	store.posts[postKey{"g1", "p1"}] = samplePost()
	router := setupPostRouter(store, enum.RoleAdmin)

	rr := doRequest(t, router, "GET", "/groups/g1/posts?page=1&page_size=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	resp := decodeMap(t, rr)
	if resp["total"].(float64) != 1 {
		t.Errorf("total = %v, want 1", resp["total"])
	}
	if resp["page_size"].(float64) != 10 {
		t.Errorf("page_size = %v, want 10", resp["page_size"])
	}
}
