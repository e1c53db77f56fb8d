package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/minhmom/api/internal/auth"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/enum"
	"github.com/minhmom/api/internal/handler"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	accounts map[string]database.Account
}

func newMockAuthStore(t *testing.T) *mockAuthStore {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &mockAuthStore{accounts: map[string]database.Account{
		"mom": {
			Username:     "mom",
			PasswordHash: hash,
			Role:         enum.RoleAdmin,
			IsActive:     true,
			CreatedAt:    time.Now(),
		},
	}}
}

func (m *mockAuthStore) GetAccountByUsername(_ context.Context, username string) (database.Account, error) {
	a, ok := m.accounts[username]
	if !ok {
		return database.Account{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *mockAuthStore) CreateAccount(_ context.Context, arg database.CreateAccountParams) (database.Account, error) {
	if _, exists := m.accounts[arg.Username]; exists {
		return database.Account{}, &pgconn.PgError{Code: "23505"}
	}
	a := database.Account{
		Username:     arg.Username,
		PasswordHash: arg.PasswordHash,
		Role:         arg.Role,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	m.accounts[a.Username] = a
	return a, nil
}

func (m *mockAuthStore) ListAccounts(_ context.Context) ([]database.Account, error) {
	var result []database.Account
	for _, a := range m.accounts {
		result = append(result, a)
	}
	return result, nil
}

// --- Helpers ---

func setupAuthRouter(store *mockAuthStore, role string) *chi.Mux {
	h := handler.NewAuthHandler(store, testSecret, time.Hour)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(asRole("mom", role))
		h.RegisterRoutes(r)
	})
	return r
}

// --- Tests ---

func TestLogin_OK(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore(t), enum.RoleAdmin)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"username": "mom",
		"password": "correct-horse",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeMap(t, rr)
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatal("no token in response")
	}

	claims, err := auth.ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.Username != "mom" || claims.Role != enum.RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore(t), enum.RoleAdmin)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"username": "mom",
		"password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore(t), enum.RoleAdmin)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"username": "nobody",
		"password": "correct-horse",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	store := newMockAuthStore(t)
	a := store.accounts["mom"]
	a.IsActive = false
	store.accounts["mom"] = a
	router := setupAuthRouter(store, enum.RoleAdmin)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"username": "mom",
		"password": "correct-horse",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRegister_OK(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore(t), enum.RoleAdmin)

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"username": "helper",
		"password": "secret123",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeMap(t, rr)
	if resp["role"] != enum.RoleUser {
		t.Errorf("role = %v, want %v", resp["role"], enum.RoleUser)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore(t), enum.RoleAdmin)

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"username": "mom",
		"password": "secret123",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestRegister_RequiresAdmin(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore(t), enum.RoleUser)

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"username": "helper",
		"password": "secret123",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestMe(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore(t), enum.RoleAdmin)

	rr := doRequest(t, router, "GET", "/auth/me", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	resp := decodeMap(t, rr)
	if resp["username"] != "mom" {
		t.Errorf("username = %v, want mom", resp["username"])
	}
}
