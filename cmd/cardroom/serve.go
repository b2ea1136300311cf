package main

import (
	"context"
	"time"

	"github.com/lox/cardroom/internal/config"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/server"
	"golang.org/x/sync/errgroup"
)

// ServeCmd runs the websocket and HTTP server
type ServeCmd struct {
	Addr      string `help:"Server address (overrides config)"`
	LogLevel  string `help:"Log level (overrides config)"`
	NoRestore bool   `help:"Start empty instead of restoring stored tables"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	ctx := setupSignalHandler(logger)

	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	publisher, nc, err := connectEvents(cfg.NATS, logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Close()
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithLedger(ledger.New()),
		server.WithStore(st),
	}
	if publisher != nil {
		opts = append(opts, server.WithPublisher(publisher))
	}
	var history *phh.Writer
	if cfg.Store.HistoryFile != "" {
		if history, err = phh.NewWriter(cfg.Store.HistoryFile, 20, logger); err != nil {
			return err
		}
		defer history.Close()
	}

	reg, err := server.NewRegistry(registryConfig(cfg), opts...)
	if err != nil {
		return err
	}
	defer reg.Close()
	if history != nil {
		reg.OnHandSettled(history.OnHandSettled)
	}

	if !c.NoRestore {
		if err := reg.Restore(ctx); err != nil {
			return err
		}
	}
	if err := openTables(ctx, reg, cfg.Tables, logger); err != nil {
		return err
	}

	srv := server.NewServer(cfg.Server.Address, reg, logger)
	logger.Info().
		Str("address", cfg.Server.Address).
		Str("store", cfg.Store.Backend).
		Int("tables", len(reg.Tables())).
		Msg("Starting cardroom server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
