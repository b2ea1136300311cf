package game

import (
	rand "math/rand/v2"

	"github.com/coder/quartz"
	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/gameid"
	"github.com/lox/cardroom/internal/rake"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/rs/zerolog"
)

// DefaultMaxSeats is a full ring game
const DefaultMaxSeats = 9

// Option configures a Table during creation.
type Option func(*Table)

// WithMaxSeats sets the number of seats (2 to 10)
func WithMaxSeats(n int) Option {
	return func(t *Table) { t.maxSeats = n }
}

// WithRNG sets the random source used to shuffle each hand's deck
func WithRNG(rng *rand.Rand) Option {
	return func(t *Table) { t.rng = rng }
}

// WithDeckSource overrides deck creation, e.g. to stack hands in tests
func WithDeckSource(fn func() *deck.Deck) Option {
	return func(t *Table) { t.deckSource = fn }
}

// WithRakeConfig sets the rake schedule for cash tables and the fee
// schedule for tournament entries
func WithRakeConfig(cfg rake.Config) Option {
	return func(t *Table) { t.rakeCfg = cfg }
}

// WithClock sets the clock used to timestamp hands
func WithClock(clock quartz.Clock) Option {
	return func(t *Table) { t.clock = clock }
}

// WithLogger sets the table logger
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Table) { t.logger = logger }
}

// WithBuyIn sets the tournament buy-in charged at seating, in currency
func WithBuyIn(amount float64) Option {
	return func(t *Table) { t.buyIn = amount }
}

// WithEntries restores n tournament entries charged before a restart
func WithEntries(n int) Option {
	return func(t *Table) { t.entries = n }
}

// WithHandIDs overrides hand ID generation
func WithHandIDs(fn func() string) Option {
	return func(t *Table) { t.newHandID = fn }
}

func defaultOptions(t *Table) {
	rng, _ := randutil.Seeded(nil)
	t.maxSeats = DefaultMaxSeats
	t.rng = rng
	t.rakeCfg = rake.DefaultConfig()
	t.clock = quartz.NewReal()
	t.logger = zerolog.Nop()
	t.newHandID = func() string { return gameid.Typed("hand") }
}
