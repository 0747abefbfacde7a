package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"gridlearn/checkpoint"
	"gridlearn/config"
	"gridlearn/episode"
	"gridlearn/reinforcement"
)

// session is a loaded configuration with its table restored and a controller built around it.
type session struct {
	cfg        *config.AppConfig
	logger     *log.Logger
	table      *reinforcement.QTable
	store      checkpoint.Store
	closeStore func() error
	ctrl       *episode.Controller
}

func newSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	rng := cfg.Rng()
	table := cfg.NewTable(rng)
	store, closeStore := cfg.OpenStore()

	restored, err := checkpoint.Restore(ctx, store, table)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("restore %s: %w", store, err)
	}
	if restored {
		logger.Printf("[CHECKPOINT] [INFO] restored %d states from %s", table.Len(), store)
	}

	opts, err := cfg.ControllerOptions(table, store, logger, rng)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	ctrl, err := episode.NewController(opts)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	return &session{
		cfg:        cfg,
		logger:     logger,
		table:      table,
		store:      store,
		closeStore: closeStore,
		ctrl:       ctrl,
	}, nil
}

// close writes a final checkpoint unless disabled, then releases the store.
func (s *session) close(ctx context.Context) error {
	defer s.closeStore()
	if s.store == nil || noSave {
		return nil
	}
	if err := s.store.Save(ctx, s.table); err != nil {
		return fmt.Errorf("final checkpoint: %w", err)
	}
	s.logger.Printf("[CHECKPOINT] [INFO] saved %d states to %s", s.table.Len(), s.store)
	return nil
}
