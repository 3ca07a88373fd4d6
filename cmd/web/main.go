package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/beer-pong/internal/config"
	"github.com/AdamBeresnev/beer-pong/internal/db"
	"github.com/AdamBeresnev/beer-pong/internal/service"
	"github.com/AdamBeresnev/beer-pong/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB, cfg.MigrationsPath); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	tournamentStore := store.NewTournamentStore(database)
	teamStore := store.NewTeamStore(database)
	ledgerStore := store.NewLedgerStore(database)

	brackets := service.NewBracketService(database, tournamentStore, teamStore)
	advancement := service.NewAdvancement(database, tournamentStore)
	app := &application{
		teams:       service.NewTeamService(database, tournamentStore, teamStore, ledgerStore),
		tournaments: service.NewTournamentService(database, tournamentStore, teamStore, ledgerStore, brackets, cfg.TournamentDefaults),
		matches:     service.NewMatchService(database, tournamentStore, teamStore, ledgerStore, ledgerStore, advancement),
		brackets:    brackets,
		advancement: advancement,
		ledger:      ledgerStore,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      app.routes(cfg.CORSAllowedOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			_ = server.Close()
		}
	}
	logger.Info("server stopped")
}
