package main

import (
	"context"
	"fmt"

	"github.com/lox/cardroom/internal/config"
	"github.com/lox/cardroom/internal/events"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/server"
	"github.com/lox/cardroom/internal/store"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// openStore builds the configured backend. Remote backends get a table
// record cache in front.
func openStore(ctx context.Context, cfg config.StoreSettings, logger zerolog.Logger) (store.Store, error) {
	var s store.Store
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendFile:
		f, err := store.NewFile(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.BackendRedis:
		r := store.NewRedis(store.RedisOptions{Addr: cfg.RedisAddr, Prefix: cfg.RedisPrefix})
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, err
		}
		s = r
	case config.BackendPostgres:
		p, err := store.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := p.Migrate(cfg.Migrations); err != nil {
			_ = p.Close()
			return nil, err
		}
		s = p
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	logger.Info().Str("backend", cfg.Backend).Int("cache_size", cfg.CacheSize).Msg("store opened")
	if cfg.CacheSize == 0 {
		return s, nil
	}
	cached, err := store.NewCached(s, cfg.CacheSize)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return cached, nil
}

// connectEvents returns nil when no NATS URL is configured
func connectEvents(cfg config.NATSSettings, logger zerolog.Logger) (events.Publisher, *natsgo.Conn, error) {
	if cfg.URL == "" {
		return nil, nil, nil
	}
	pub, nc, err := events.Connect(cfg.URL, cfg.Prefix, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("url", cfg.URL).Str("prefix", cfg.Prefix).Msg("publishing events to nats")
	return pub, nc, nil
}

// registryConfig converts the file configuration for the registry
func registryConfig(cfg *config.Config) server.Config {
	nextHand, cpu, away, timeout := cfg.Timers.Durations()
	return server.Config{
		NextHandDelay: nextHand,
		CPUDelay:      cpu,
		AwayDelay:     away,
		ActionTimeout: timeout,
		Rake:          cfg.RakeConfig(),
		Seed:          cfg.Server.SeedPtr(),
	}
}

// openTables creates the configured tables that are not already running
// and seats their CPU players
func openTables(ctx context.Context, reg *server.Registry, tables []config.TableConfig, logger zerolog.Logger) error {
	running := make(map[string]bool)
	for _, id := range reg.Tables() {
		running[id] = true
	}

	for _, tc := range tables {
		if running[tc.Name] {
			logger.Info().Str("table_id", tc.Name).Msg("table restored, not recreating")
			continue
		}
		kind, err := game.ParseKind(tc.Kind)
		if err != nil {
			return fmt.Errorf("table %s: %w", tc.Name, err)
		}
		id, err := reg.CreateTable(ctx, server.TableSpec{
			ID:       tc.Name,
			Kind:     kind,
			Blinds:   game.Blinds{Small: tc.SmallBlind, Big: tc.BigBlind},
			MaxSeats: tc.MaxSeats,
			BuyIn:    tc.BuyIn,
		})
		if err != nil {
			return err
		}
		for i := 0; i < tc.CPUSeats; i++ {
			identity := fmt.Sprintf("cpu-%s-%d", tc.Name, i+1)
			if _, err := reg.SeatPlayer(ctx, id, identity, tc.CPUChips, server.SeatOptions{CPU: true, Strategy: tc.CPUStrategy}); err != nil {
				return fmt.Errorf("seat %s: %w", identity, err)
			}
		}
	}
	return nil
}
