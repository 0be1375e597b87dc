// Package main is the entry point for the wager session server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sardor8866/festery/internal/config"
	"github.com/Sardor8866/festery/internal/game"
	"github.com/Sardor8866/festery/internal/game/mines"
	"github.com/Sardor8866/festery/internal/game/tower"
	"github.com/Sardor8866/festery/internal/ledger"
	"github.com/Sardor8866/festery/internal/metrics"
	"github.com/Sardor8866/festery/internal/pkg/db"
	"github.com/Sardor8866/festery/internal/repository"
	"github.com/Sardor8866/festery/internal/server"
	"github.com/Sardor8866/festery/internal/service"
	"github.com/Sardor8866/festery/internal/session"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.Log)

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	sessionRepo := repository.NewSessionRepository(dbPool.Pool)
	referralRepo := repository.NewReferralRepository(dbPool.Pool)

	// Initialize game registry and register games
	gameRegistry, err := registerGames(cfg.Games)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register games")
	}
	log.Info().
		Int("game_count", gameRegistry.Count()).
		Strs("games", gameRegistry.Commands()).
		Msg("Games registered")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	// Initialize services
	accountService := service.NewAccountService(userRepo, ledgerRepo, txRepo)
	rankingService := service.NewRankingService(userRepo, txRepo, gameRegistry.Commands(), time.Local)
	referralService := service.NewReferralService(referralRepo, userRepo, cfg.Referral.Percent)

	// Session engine
	engine := session.NewEngine(session.Config{
		InactivityTimeout: cfg.Session.InactivityTimeout,
		CreditRetry: ledger.RetryPolicy{
			InitialInterval: cfg.Session.CreditRetry.InitialInterval,
			MaxInterval:     cfg.Session.CreditRetry.MaxInterval,
		},
	}, session.Deps{
		Ledger:    ledger.NewPostgres(ledgerRepo),
		Games:     gameRegistry,
		Journal:   session.NewPostgresJournal(sessionRepo),
		Observers: []session.Observer{collector, referralService},
	})

	// Finish whatever the previous process left open before taking actions
	report, err := engine.Recover(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Some sessions could not be recovered")
	}
	log.Info().
		Int("refunded", report.Refunded).
		Int("settled", report.Settled).
		Msg("Session recovery finished")

	gameService := service.NewGameService(engine, gameRegistry, accountService)

	router := server.New(&server.Dependencies{
		Config:          cfg,
		AccountService:  accountService,
		RankingService:  rankingService,
		ReferralService: referralService,
		GameService:     gameService,
		Gatherer:        reg,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server is starting...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown did not complete")
	}

	// Unacknowledged credits stay settling and are finished by the next Recover.
	engine.Close()
	log.Info().Msg("Server stopped gracefully")
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func registerGames(cfg config.GamesConfig) (*game.Registry, error) {
	registry := game.NewRegistry()

	minesGame, err := mines.New(&mines.Config{
		Size:     cfg.Mines.Size,
		MinMines: cfg.Mines.MinMines,
		MaxMines: cfg.Mines.MaxMines,
		MinBet:   cfg.Mines.MinBet,
		MaxBet:   cfg.Mines.MaxBet,
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(minesGame); err != nil {
		return nil, err
	}

	tables, err := cfg.Tower.Tables()
	if err != nil {
		return nil, err
	}
	towerGame, err := tower.New(&tower.Config{
		Floors: cfg.Tower.Floors,
		Cells:  cfg.Tower.Cells,
		MinBet: cfg.Tower.MinBet,
		MaxBet: cfg.Tower.MaxBet,
		Tables: tables,
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(towerGame); err != nil {
		return nil, err
	}

	return registry, nil
}
