// Package config loads the cardroom server configuration from an HCL file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/kelseyhightower/envconfig"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/rake"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment override, e.g. CARDROOM_SERVER_ADDRESS
const EnvPrefix = "cardroom"

// Store backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the complete server configuration
type Config struct {
	Server ServerSettings
	Timers TimerSettings
	Rake   RakeSettings
	Store  StoreSettings
	NATS   NATSSettings
	Tables []TableConfig `ignored:"true"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	LogLevel  string `hcl:"log_level,optional" envconfig:"log_level"`
	LogFormat string `hcl:"log_format,optional" envconfig:"log_format"` // console or json
	Seed      int64  `hcl:"seed,optional"`                              // Zero shuffles unpredictably
}

// TimerSettings are in milliseconds. An action timeout of zero or less
// disables it.
type TimerSettings struct {
	NextHandMS      int `hcl:"next_hand_ms,optional" envconfig:"next_hand_ms"`
	CPUMS           int `hcl:"cpu_ms,optional" envconfig:"cpu_ms"`
	AwayMS          int `hcl:"away_ms,optional" envconfig:"away_ms"`
	ActionTimeoutMS int `hcl:"action_timeout_ms,optional" envconfig:"action_timeout_ms"`
}

// RakeSettings mirror rake.Config. Attributes left out take the house
// defaults; an explicit zero is kept.
type RakeSettings struct {
	Percent       float64        `hcl:"percent,optional"`
	DefaultCap    float64        `hcl:"default_cap,optional" envconfig:"default_cap"`
	MinPot        float64        `hcl:"min_pot,optional" envconfig:"min_pot"`
	NoFlopNoDrop  bool           `hcl:"no_flop_no_drop,optional" envconfig:"no_flop_no_drop"`
	FeePercent    float64        `hcl:"fee_percent,optional" envconfig:"fee_percent"`
	FeeMin        float64        `hcl:"fee_min,optional" envconfig:"fee_min"`
	FeeMax        float64        `hcl:"fee_max,optional" envconfig:"fee_max"`
	RakebackRates []float64      `hcl:"rakeback_rates,optional" envconfig:"rakeback_rates"`
	ChipValue     float64        `hcl:"chip_value,optional" envconfig:"chip_value"`
	Tiers         []TierSettings `hcl:"tier,block" ignored:"true"`
}

// TierSettings caps the rake for big blinds up to MaxBigBlind
type TierSettings struct {
	MaxBigBlind float64 `hcl:"max_big_blind"`
	Cap         float64 `hcl:"cap"`
}

// StoreSettings selects and configures the persistence backend
type StoreSettings struct {
	Backend     string `hcl:"backend,optional"`
	Dir         string `hcl:"dir,optional"`
	RedisAddr   string `hcl:"redis_addr,optional" envconfig:"redis_addr"`
	RedisPrefix string `hcl:"redis_prefix,optional" envconfig:"redis_prefix"`
	PostgresDSN string `hcl:"postgres_dsn,optional" envconfig:"postgres_dsn"`
	Migrations  string `hcl:"migrations,optional"`
	CacheSize   int    `hcl:"cache_size,optional" envconfig:"cache_size"`
	HistoryFile string `hcl:"history_file,optional" envconfig:"history_file"` // PHH export, empty disables
}

// NATSSettings enables event publishing when URL is set
type NATSSettings struct {
	URL    string `hcl:"url,optional"`
	Prefix string `hcl:"prefix,optional"`
}

// TableConfig is a table opened at startup, optionally with CPU seats
type TableConfig struct {
	Name        string  `hcl:"name,label"`
	Kind        string  `hcl:"kind,optional"`
	SmallBlind  int64   `hcl:"small_blind"`
	BigBlind    int64   `hcl:"big_blind"`
	MaxSeats    int     `hcl:"max_seats,optional"`
	BuyIn       float64 `hcl:"buy_in,optional"`
	CPUSeats    int     `hcl:"cpu_seats,optional"`
	CPUStrategy string  `hcl:"cpu_strategy,optional"`
	CPUChips    int64   `hcl:"cpu_chips,optional"`
}

// document is the HCL file layout; every block is optional. Block bodies
// are decoded onto the defaults so an attribute left out keeps its default
// and an explicit zero is kept.
type document struct {
	Server *section      `hcl:"server,block"`
	Timers *section      `hcl:"timers,block"`
	Rake   *section      `hcl:"rake,block"`
	Store  *section      `hcl:"store,block"`
	NATS   *section      `hcl:"nats,block"`
	Tables []TableConfig `hcl:"table,block"`
}

type section struct {
	Body hcl.Body `hcl:",remain"`
}

// Default returns the configuration used without a file
func Default() *Config {
	house := rake.DefaultConfig()
	c := &Config{
		Server: ServerSettings{
			Address:   "localhost:8080",
			LogLevel:  "info",
			LogFormat: "console",
		},
		Timers: TimerSettings{
			NextHandMS:      2000,
			CPUMS:           500,
			AwayMS:          1000,
			ActionTimeoutMS: 30000,
		},
		Rake: RakeSettings{
			Percent:       house.RakePercent,
			DefaultCap:    house.DefaultCap,
			MinPot:        house.MinPot,
			NoFlopNoDrop:  house.NoFlopNoDrop,
			FeePercent:    house.FeePercent,
			FeeMin:        house.FeeMin,
			FeeMax:        house.FeeMax,
			RakebackRates: house.RakebackRates,
			ChipValue:     house.ChipValue,
			Tiers:         defaultTiers(house),
		},
		Store: StoreSettings{
			Backend:    BackendMemory,
			Dir:        "cardroom-data",
			Migrations: "migrations",
			CacheSize:  128,
		},
		NATS: NATSSettings{Prefix: "cardroom"},
	}
	return c
}

func defaultTiers(house rake.Config) []TierSettings {
	tiers := make([]TierSettings, 0, len(house.Tiers))
	for _, t := range house.Tiers {
		tiers = append(tiers, TierSettings{MaxBigBlind: t.MaxBigBlind, Cap: t.Cap})
	}
	return tiers
}

// Load reads filename and applies environment overrides on top. A missing
// file yields the defaults.
func Load(filename string) (*Config, error) {
	var cfg *Config
	src, err := os.ReadFile(filename)
	switch {
	case filename == "" || errors.Is(err, os.ErrNotExist):
		cfg = Default()
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if cfg, err = Parse(src, filename); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	cfg.applyTableDefaults()
	return cfg, nil
}

// Parse decodes HCL source over the defaults
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var doc document
	diags = gohcl.DecodeBody(file.Body, nil, &doc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg := Default()
	cfg.Tables = doc.Tables
	if doc.Rake != nil {
		// Tier blocks replace the house schedule rather than merge into it
		cfg.Rake.Tiers = nil
	}
	for _, s := range []struct {
		block *section
		into  any
	}{
		{doc.Server, &cfg.Server},
		{doc.Timers, &cfg.Timers},
		{doc.Rake, &cfg.Rake},
		{doc.Store, &cfg.Store},
		{doc.NATS, &cfg.NATS},
	} {
		if s.block == nil {
			continue
		}
		if diags := gohcl.DecodeBody(s.block.Body, nil, s.into); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
		}
	}
	if len(cfg.Rake.Tiers) == 0 {
		cfg.Rake.Tiers = defaultTiers(rake.DefaultConfig())
	}
	cfg.applyTableDefaults()
	return cfg, nil
}

// applyTableDefaults fills table settings that have no meaningful zero
func (c *Config) applyTableDefaults() {
	for i := range c.Tables {
		t := &c.Tables[i]
		if t.Kind == "" {
			t.Kind = game.Cash.String()
		}
		if t.MaxSeats == 0 {
			t.MaxSeats = 6
		}
		if t.CPUChips == 0 {
			t.CPUChips = t.BigBlind * 100
		}
		if t.CPUStrategy == "" {
			t.CPUStrategy = "call"
		}
	}
}

// Validate checks the configuration for values the server cannot use
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server address is required")
	}
	if _, err := zerolog.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	if c.Server.LogFormat != "console" && c.Server.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q", c.Server.LogFormat)
	}
	if c.Timers.NextHandMS < 0 || c.Timers.CPUMS < 0 || c.Timers.AwayMS < 0 {
		return errors.New("timer delays must not be negative")
	}
	if err := c.RakeConfig().Validate(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("store: redis_addr is required for the redis backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store: postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store: unknown backend %q", c.Store.Backend)
	}
	if c.Store.CacheSize < 0 {
		return errors.New("store: cache_size must not be negative")
	}

	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if seen[t.Name] {
			return fmt.Errorf("table %s: defined twice", t.Name)
		}
		seen[t.Name] = true
		if _, err := game.ParseKind(t.Kind); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if t.SmallBlind <= 0 {
			return fmt.Errorf("table %s: small blind must be positive", t.Name)
		}
		if t.BigBlind < t.SmallBlind {
			return fmt.Errorf("table %s: big blind must be at least the small blind", t.Name)
		}
		if t.MaxSeats < 2 || t.MaxSeats > 10 {
			return fmt.Errorf("table %s: max seats must be between 2 and 10", t.Name)
		}
		if t.CPUSeats < 0 || t.CPUSeats > t.MaxSeats {
			return fmt.Errorf("table %s: cpu seats must be between 0 and %d", t.Name, t.MaxSeats)
		}
		if t.CPUChips <= 0 {
			return fmt.Errorf("table %s: cpu chips must be positive", t.Name)
		}
	}
	return nil
}

// RakeConfig converts the rake settings for the calculators
func (c *Config) RakeConfig() rake.Config {
	r := c.Rake
	cfg := rake.Config{
		RakePercent:   r.Percent,
		DefaultCap:    r.DefaultCap,
		MinPot:        r.MinPot,
		NoFlopNoDrop:  r.NoFlopNoDrop,
		FeePercent:    r.FeePercent,
		FeeMin:        r.FeeMin,
		FeeMax:        r.FeeMax,
		RakebackRates: append([]float64(nil), r.RakebackRates...),
		ChipValue:     r.ChipValue,
	}
	for _, t := range r.Tiers {
		cfg.Tiers = append(cfg.Tiers, rake.Tier{MaxBigBlind: t.MaxBigBlind, Cap: t.Cap})
	}
	return cfg
}

// Durations converts the timer settings. A negative action timeout becomes
// zero, which disables it.
func (t TimerSettings) Durations() (nextHand, cpu, away, actionTimeout time.Duration) {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return ms(t.NextHandMS), ms(t.CPUMS), ms(t.AwayMS), ms(max(t.ActionTimeoutMS, 0))
}

// SeedPtr returns the configured shuffle seed, or nil to seed randomly
func (s ServerSettings) SeedPtr() *int64 {
	if s.Seed == 0 {
		return nil
	}
	seed := s.Seed
	return &seed
}
