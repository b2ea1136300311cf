package main

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/lox/cardroom/internal/config"
	"github.com/lox/cardroom/internal/events"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/server"
	natsgo "github.com/nats-io/nats.go"
)

// WatchCmd prints settlements as another cardroom publishes them
type WatchCmd struct {
	URL    string `help:"NATS URL (overrides config)"`
	Prefix string `help:"Subject prefix (overrides config)"`
	Dots   bool   `help:"One dot per hand instead of full results"`
}

func (c *WatchCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.URL != "" {
		cfg.NATS.URL = c.URL
	}
	if c.Prefix != "" {
		cfg.NATS.Prefix = c.Prefix
	}
	if cfg.NATS.URL == "" {
		return fmt.Errorf("no NATS URL configured")
	}

	logger := setupLogger(cfg.Server.LogLevel, cfg.Server.LogFormat)
	ctx := setupSignalHandler(logger)

	nc, err := natsgo.Connect(cfg.NATS.URL, natsgo.Name("cardroom-watch"))
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Close()

	var monitor server.HandMonitor = server.NewPrettyMonitor(os.Stdout)
	if c.Dots {
		monitor = server.NewDotsMonitor(os.Stdout)
	}

	var hands atomic.Int64
	sub, err := events.SubscribeSettlements(nc, cfg.NATS.Prefix, func(s game.Settlement) {
		hands.Add(1)
		monitor.OnHandSettled(s)
	})
	if err != nil {
		return err
	}
	logger.Info().Str("subject", sub.Subject).Msg("watching settlements")

	<-ctx.Done()
	_ = sub.Drain()
	monitor.OnComplete(int(hands.Load()), "interrupted")
	return nil
}
