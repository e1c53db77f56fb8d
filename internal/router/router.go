package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minhmom/api/internal/config"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/handler"
	"github.com/minhmom/api/internal/logging"
	mw "github.com/minhmom/api/internal/middleware"
	"github.com/minhmom/api/internal/service"
	"github.com/minhmom/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(logging.RequestLogger)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"minhmom-api","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, cfg.TokenTTL)
	authHandler.RegisterPublicRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/groups/{group_id}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterRoutes(r)

		statusHandler := handler.NewStatusHandler(queries)
		statusHandler.RegisterRoutes(r)

		// Group-scoped routes
		r.Route("/groups/{group_id}", func(r chi.Router) {
			postHandler := handler.NewPostHandler(queries)
			postHandler.RegisterRoutes(r)

			newOrderStore := func(db database.DBTX) service.OrderStore {
				return database.New(db)
			}
			orderService := service.NewOrderService(pool, newOrderStore)
			orderHandler := handler.NewOrderHandler(queries, orderService, hub)
			orderHandler.RegisterRoutes(r)

			userHandler := handler.NewUserHandler(queries)
			userHandler.RegisterRoutes(r)

			dashboardHandler := handler.NewDashboardHandler(queries)
			dashboardHandler.RegisterRoutes(r)
		})
	})

	return r
}
