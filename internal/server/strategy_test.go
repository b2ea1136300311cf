package server

import (
	"testing"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	facingBet = game.ActionOptions{
		Actions:    []game.Action{game.Fold, game.Call, game.Raise, game.AllIn},
		CallAmount: 10,
		MinRaise:   20,
		MaxRaise:   200,
	}
	checkedTo = game.ActionOptions{
		Actions:  []game.Action{game.Fold, game.Check, game.Raise, game.AllIn},
		MinRaise: 10,
		MaxRaise: 200,
	}
	shortStack = game.ActionOptions{
		Actions:    []game.Action{game.Fold, game.Call, game.AllIn},
		CallAmount: 50,
	}
)

func TestResolveStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"", "call"},
		{"call", "call"},
		{"Calling-Station", "call"},
		{"nit", "fold"},
		{" maniac ", "aggressive"},
		{"rand", "random"},
	}
	for _, tt := range tests {
		s, err := ResolveStrategy(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, s.Name(), tt.name)
	}

	_, err := ResolveStrategy("gto")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	for _, name := range Strategies() {
		s, err := ResolveStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
}

func TestPassiveStrategies(t *testing.T) {
	t.Parallel()
	rng := randutil.New(1)

	action, _ := callingStrategy{}.Decide(Situation{Options: facingBet}, rng)
	assert.Equal(t, game.Call, action)
	action, _ = callingStrategy{}.Decide(Situation{Options: checkedTo}, rng)
	assert.Equal(t, game.Check, action)

	action, _ = foldingStrategy{}.Decide(Situation{Options: facingBet}, rng)
	assert.Equal(t, game.Fold, action)
	action, _ = foldingStrategy{}.Decide(Situation{Options: checkedTo}, rng)
	assert.Equal(t, game.Check, action)

	action, _ = awayAction(facingBet)
	assert.Equal(t, game.Fold, action)
	action, _ = awayAction(checkedTo)
	assert.Equal(t, game.Check, action)
}

func TestRandomStrategiesStayLegal(t *testing.T) {
	t.Parallel()
	rng := randutil.New(7)

	for _, s := range []Strategy{aggressiveStrategy{}, randomStrategy{}} {
		for _, opts := range []game.ActionOptions{facingBet, checkedTo, shortStack} {
			for i := 0; i < 200; i++ {
				action, amount := s.Decide(Situation{Options: opts, Chips: 200, Pot: 30, BigBlind: 10}, rng)
				require.True(t, opts.Can(action), "%s chose %s", s.Name(), action)
				if action == game.Raise {
					assert.GreaterOrEqual(t, amount, opts.MinRaise)
					assert.LessOrEqual(t, amount, opts.MaxRaise)
				}
				if s.Name() == "random" {
					assert.False(t, action == game.Fold && opts.Can(game.Check), "folded when checking was free")
				}
			}
		}
	}
}

func TestAggressiveStrategyRaises(t *testing.T) {
	t.Parallel()
	rng := randutil.New(3)

	raises := 0
	for i := 0; i < 100; i++ {
		action, amount := aggressiveStrategy{}.Decide(Situation{Options: facingBet, Pot: 30, BigBlind: 10}, rng)
		if action == game.Raise {
			raises++
			assert.GreaterOrEqual(t, amount, int64(60))
		}
	}
	assert.Greater(t, raises, 40)
}
