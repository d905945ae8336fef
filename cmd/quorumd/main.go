package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slyt3/Quorum/internal/api"
	"github.com/slyt3/Quorum/internal/catalog"
	"github.com/slyt3/Quorum/internal/config"
	"github.com/slyt3/Quorum/internal/crypto"
	"github.com/slyt3/Quorum/internal/funding"
	"github.com/slyt3/Quorum/internal/identity"
	"github.com/slyt3/Quorum/internal/ledger"
	"github.com/slyt3/Quorum/internal/ledger/store"
	"github.com/slyt3/Quorum/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to quorum.yaml (default $QUORUM_CONFIG or ./quorum.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Critical("server_failed", logging.Fields{Component: "main", Error: err.Error()})
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logging.SetLevel(cfg.LogLevel)

	db, err := store.NewDB(cfg.Database.Path, cfg.BusyTimeout())
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error("database_close_failed", logging.Fields{Component: "main", Error: err.Error()})
		}
	}()

	signer, err := crypto.NewSigner(cfg.Ledger.KeyPath)
	if err != nil {
		return fmt.Errorf("loading signer: %w", err)
	}
	engine, err := ledger.NewEngine(db, signer, ledger.Options{
		MaxAttempts:  cfg.Ledger.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.EnsureGenesis(ctx); err != nil {
		return fmt.Errorf("initializing journal: %w", err)
	}
	guard, err := funding.NewGuard(db, cfg.Funding.BatchSize)
	if err != nil {
		return err
	}
	cat, err := catalog.New(db)
	if err != nil {
		return err
	}

	var resolver identity.Resolver
	switch cfg.Identity.Mode {
	case "header":
		resolver = identity.HeaderResolver{Header: cfg.Identity.Header}
	default:
		resolver, err = identity.NewTelegramResolver(db, cfg.Identity.BotToken, cfg.Identity.VerifySignature, cfg.IdentityMaxAge())
		if err != nil {
			return err
		}
		if !cfg.Identity.VerifySignature {
			logging.Warn("telegram_signature_check_disabled", logging.Fields{Component: "main"})
		}
	}

	handlers, err := api.NewHandlers(db, engine, guard, cat, resolver, cfg.Server.AdminToken)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           handlers.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server_listening", logging.Fields{Component: "main", Status: cfg.Server.ListenAddr, Method: cfg.Identity.Mode})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("server_stopping", logging.Fields{Component: "main"})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
