package main

import (
	"context"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minhmom/api/internal/config"
	"github.com/minhmom/api/internal/database"
	"github.com/minhmom/api/internal/logging"
	"github.com/minhmom/api/internal/router"
	"github.com/minhmom/api/internal/ws"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info")
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.LogLevel)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().Msg("connected to database")

	hub := ws.NewHub()
	go hub.Run()

	queries := database.New(pool)
	r := router.New(cfg, queries, pool, hub)

	log.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
