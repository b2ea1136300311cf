package server

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"strings"

	"github.com/lox/cardroom/internal/game"
)

// ErrUnknownStrategy is returned when a CPU seat names a strategy that does
// not exist
var ErrUnknownStrategy = errors.New("unknown strategy")

// Situation is what a CPU seat knows when it has to act
type Situation struct {
	Options  game.ActionOptions
	Chips    int64
	Pot      int64
	BigBlind int64
}

// Strategy decides for CPU seats. Decide must return one of the legal
// actions in the situation; raise amounts are the total bet.
type Strategy interface {
	Name() string
	Decide(s Situation, rng *rand.Rand) (game.Action, int64)
}

type callingStrategy struct{}

type foldingStrategy struct{}

type aggressiveStrategy struct{}

type randomStrategy struct{}

func (callingStrategy) Name() string { return "call" }

func (callingStrategy) Decide(s Situation, _ *rand.Rand) (game.Action, int64) {
	return passive(s.Options, true)
}

func (foldingStrategy) Name() string { return "fold" }

func (foldingStrategy) Decide(s Situation, _ *rand.Rand) (game.Action, int64) {
	return passive(s.Options, false)
}

func (aggressiveStrategy) Name() string { return "aggressive" }

// Decide raises two to three times the pot most of the time and otherwise
// calls
func (aggressiveStrategy) Decide(s Situation, rng *rand.Rand) (game.Action, int64) {
	opts := s.Options
	if rng.Float32() < 0.7 {
		if opts.Can(game.Raise) {
			amount := opts.MinRaise
			if s.Pot > 0 {
				amount = max(amount, s.Pot*int64(2+rng.IntN(2)))
			}
			return game.Raise, min(amount, opts.MaxRaise)
		}
		if opts.Can(game.AllIn) {
			return game.AllIn, 0
		}
	}
	return passive(opts, true)
}

func (randomStrategy) Name() string { return "random" }

func (randomStrategy) Decide(s Situation, rng *rand.Rand) (game.Action, int64) {
	opts := s.Options
	if len(opts.Actions) == 0 {
		return game.Fold, 0
	}
	action := opts.Actions[rng.IntN(len(opts.Actions))]
	if action == game.Fold && opts.Can(game.Check) {
		// Folding for free is never useful
		return game.Check, 0
	}
	if action == game.Raise {
		amount := opts.MinRaise
		if opts.MaxRaise > opts.MinRaise {
			amount += rng.Int64N(opts.MaxRaise - opts.MinRaise + 1)
		}
		return game.Raise, amount
	}
	return action, 0
}

// passive checks when it can, then calls if willing, then folds
func passive(opts game.ActionOptions, call bool) (game.Action, int64) {
	switch {
	case opts.Can(game.Check):
		return game.Check, 0
	case call && opts.Can(game.Call):
		return game.Call, 0
	}
	return game.Fold, 0
}

// ResolveStrategy returns the strategy for a name or one of its aliases. An
// empty name is the calling station.
func ResolveStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "call", "calling", "calling-station", "station":
		return callingStrategy{}, nil
	case "fold", "folding", "nit":
		return foldingStrategy{}, nil
	case "aggressive", "aggro", "maniac":
		return aggressiveStrategy{}, nil
	case "random", "rand":
		return randomStrategy{}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, name)
}

// Strategies lists the canonical strategy names
func Strategies() []string {
	return []string{"call", "fold", "aggressive", "random"}
}

// awayAction is what the house does for a seat that is away or timed out
func awayAction(opts game.ActionOptions) (game.Action, int64) {
	return passive(opts, false)
}
