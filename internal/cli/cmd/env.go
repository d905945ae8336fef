// Package cmd implements the quorum-cli subcommands. Each command opens the
// store named by the configuration, does one thing and prints to out.
package cmd

import (
	"fmt"

	"github.com/slyt3/Quorum/internal/config"
	"github.com/slyt3/Quorum/internal/crypto"
	"github.com/slyt3/Quorum/internal/ledger"
	"github.com/slyt3/Quorum/internal/ledger/store"
	"github.com/slyt3/Quorum/internal/logging"
)

// Env is what a command runs against.
type Env struct {
	Config *config.Config
	DB     *store.DB
	Engine *ledger.Engine
}

// Open loads configuration from configPath (empty for the default) and opens the store.
func Open(configPath string) (*Env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.LogLevel)

	db, err := store.NewDB(cfg.Database.Path, cfg.BusyTimeout())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	signer, err := crypto.NewSigner(cfg.Ledger.KeyPath)
	if err != nil {
		return nil, closeWith(db, fmt.Errorf("loading signer: %w", err))
	}
	engine, err := ledger.NewEngine(db, signer, ledger.Options{
		MaxAttempts:  cfg.Ledger.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff(),
	})
	if err != nil {
		return nil, closeWith(db, err)
	}
	return &Env{Config: cfg, DB: db, Engine: engine}, nil
}

func (e *Env) Close() error {
	return e.DB.Close()
}

func closeWith(db *store.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("%w; closing database: %v", err, closeErr)
	}
	return err
}
