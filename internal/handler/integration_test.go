//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/minhmom/api/internal/config"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/router"
	"github.com/minhmom/api/internal/ws"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow exercises the order lifecycle against a real
// PostgreSQL database: create from a comment, reprice, split, cancel,
// then check the listings, customer stats and dashboard that hang off
// the orders.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		ListenAddr:  ":8081",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
		TokenTTL:    time.Hour,
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// Hub has no shutdown mechanism; the goroutine leaks on test exit,
	// which is acceptable here.
	go hub.Run()

	server := httptest.NewServer(router.New(cfg, queries, pool, hub))
	defer server.Close()

	// --- Bootstrap: admin account and a post with a bundle-priced item.
	// Posts come from the scraper pipeline, so there is no create endpoint;
	// insert directly like the scraper would.
	createAdminAccount(t, ctx, pool, "mom", "password123")
	insertPost(t, ctx, pool, "g1", "p1")

	status, resp := doAPI(t, server, "POST", "/auth/login", map[string]interface{}{
		"username": "mom",
		"password": "password123",
	}, "")
	if status != http.StatusOK {
		t.Fatalf("login: status %d, body %v", status, resp)
	}
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatalf("login: no token in response: %v", resp)
	}

	// --- Create an order from a comment. Item packs are {1: 50000,
	// 5: 220000}, so 7 units price as 5+1+1 = 320000.
	status, order := doAPI(t, server, "POST", "/groups/g1/posts/p1/orders", map[string]interface{}{
		"comment_id":   "c1",
		"comment_text": "7 áo thun nhé shop",
		"customer_uid": "u100",
		"customer_url": "https://facebook.com/u100",
		"qty":          7,
		"item_type":    "áo thun",
		"unit_price":   "50000",
	}, token)
	if status != http.StatusCreated {
		t.Fatalf("create order: status %d, body %v", status, order)
	}
	orderID := order["order_id"].(string)
	if order["total_price"] != "320000" {
		t.Fatalf("bundle total: got %v, want 320000", order["total_price"])
	}
	if order["status_code"] != "NEW" {
		t.Fatalf("initial status: got %v, want NEW", order["status_code"])
	}

	// --- Same comment again must conflict.
	status, _ = doAPI(t, server, "POST", "/groups/g1/posts/p1/orders", map[string]interface{}{
		"comment_id":   "c1",
		"customer_uid": "u100",
		"qty":          1,
	}, token)
	if status != http.StatusConflict {
		t.Fatalf("duplicate comment: status %d, want %d", status, http.StatusConflict)
	}

	// --- Move the order along and verify the history grows.
	status, order = doAPI(t, server, "PATCH", fmt.Sprintf("/groups/g1/orders/%s/status", orderID), map[string]interface{}{
		"status_code": "ORDERED",
		"note":        "paid upfront",
	}, token)
	if status != http.StatusOK {
		t.Fatalf("update status: status %d, body %v", status, order)
	}
	if order["status_code"] != "ORDERED" {
		t.Fatalf("status after update: got %v, want ORDERED", order["status_code"])
	}
	if history := order["status_history"].([]interface{}); len(history) != 2 {
		t.Fatalf("status history entries: got %d, want 2", len(history))
	}

	// --- Split off 3 units. Both halves reprice through the packs, so the
	// totals need not sum to the pre-split 320000.
	status, split := doAPI(t, server, "POST", fmt.Sprintf("/groups/g1/orders/%s/split", orderID), map[string]interface{}{
		"qty": 3,
	}, token)
	if status != http.StatusOK {
		t.Fatalf("split: status %d, body %v", status, split)
	}
	original := split["original"].(map[string]interface{})
	child := split["split"].(map[string]interface{})
	if original["qty"].(float64) != 4 || child["qty"].(float64) != 3 {
		t.Fatalf("split quantities: got %v/%v, want 4/3", original["qty"], child["qty"])
	}
	if original["total_price"] != "200000" || child["total_price"] != "150000" {
		t.Fatalf("split totals: got %v/%v, want 200000/150000", original["total_price"], child["total_price"])
	}
	if child["comment_id"] != nil {
		t.Fatalf("split child comment_id: got %v, want null", child["comment_id"])
	}
	childID := child["order_id"].(string)
	if childID == orderID {
		t.Fatal("split child must get its own order id")
	}

	// --- Attach a customer profile and cancel the split half.
	status, _ = doAPI(t, server, "PUT", "/groups/g1/users/u100", map[string]interface{}{
		"name":         "Chị Lan",
		"phone_number": "0901234567",
	}, token)
	if status != http.StatusOK {
		t.Fatalf("upsert customer: status %d", status)
	}

	status, _ = doAPI(t, server, "PATCH", fmt.Sprintf("/groups/g1/orders/%s/status", childID), map[string]interface{}{
		"status_code": "CANCELLED",
	}, token)
	if status != http.StatusOK {
		t.Fatalf("cancel split order: status %d", status)
	}

	// --- Customer stats: revenue excludes the cancelled half.
	status, stats := doAPI(t, server, "GET", "/groups/g1/users/u100/orders", nil, token)
	if status != http.StatusOK {
		t.Fatalf("customer orders: status %d", status)
	}
	if stats["total_orders"].(float64) != 2 {
		t.Fatalf("customer total_orders: got %v, want 2", stats["total_orders"])
	}
	if stats["total_revenue"] != "200000" {
		t.Fatalf("customer total_revenue: got %v, want 200000", stats["total_revenue"])
	}
	if stats["cancelled_count"].(float64) != 1 {
		t.Fatalf("customer cancelled_count: got %v, want 1", stats["cancelled_count"])
	}

	// --- Listings: the default view hides the cancelled order.
	status, listing := doAPI(t, server, "GET", "/groups/g1/orders", nil, token)
	if status != http.StatusOK {
		t.Fatalf("list orders: status %d", status)
	}
	if listing["total"].(float64) != 1 {
		t.Fatalf("default listing total: got %v, want 1", listing["total"])
	}

	status, listing = doAPI(t, server, "GET", "/groups/g1/orders?all=true", nil, token)
	if status != http.StatusOK {
		t.Fatalf("list all orders: status %d", status)
	}
	if listing["total"].(float64) != 2 {
		t.Fatalf("unfiltered listing total: got %v, want 2", listing["total"])
	}

	// --- Dashboard for the current year.
	year := time.Now().UTC().Year()
	status, dash := doAPI(t, server, "GET", fmt.Sprintf("/groups/g1/dashboard?year=%d", year), nil, token)
	if status != http.StatusOK {
		t.Fatalf("dashboard: status %d", status)
	}
	if dash["order_count"].(float64) != 2 || dash["cancelled_count"].(float64) != 1 {
		t.Fatalf("dashboard counts: order_count=%v cancelled=%v, want 2/1", dash["order_count"], dash["cancelled_count"])
	}
	if dash["revenue"] != "200000" {
		t.Fatalf("dashboard revenue: got %v, want 200000", dash["revenue"])
	}

	t.Logf("integration flow passed: container=%s order=%s split=%s",
		pgContainer.GetContainerID(), orderID, childID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("minhmom_test"),
		tcpostgres.WithUsername("minhmom"),
		tcpostgres.WithPassword("minhmom"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Go test runs with the package directory as cwd.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createAdminAccount(t *testing.T, ctx context.Context, pool *pgxpool.Pool, username, password string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO accounts (username, password_hash, role) VALUES ($1, $2, 'admin')`,
		username, string(hashed))
	if err != nil {
		t.Fatalf("create admin account: %v", err)
	}
}

func insertPost(t *testing.T, ctx context.Context, pool *pgxpool.Pool, groupID, postID string) {
	t.Helper()
	items := `[{"name": "Áo thun", "type": "áo thun", "prices": [
		{"qty": 1, "bundle_price": 50000},
		{"qty": 5, "bundle_price": 220000}
	]}]`
	_, err := pool.Exec(ctx,
		`INSERT INTO posts (id, group_id, description, items, created_time)
		 VALUES ($1, $2, $3, $4, now())`,
		postID, groupID, "Áo thun nam, 50k/c, 5c 220k", items)
	if err != nil {
		t.Fatalf("insert post: %v", err)
	}
}

// --- HTTP helper ---

func doAPI(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && resp.StatusCode != http.StatusNoContent {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return resp.StatusCode, result
}
