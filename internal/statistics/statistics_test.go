package statistics

import (
	"strings"
	"sync"
	"testing"

	"github.com/lox/cardroom/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsEmpty(t *testing.T) {
	t.Parallel()
	var s Statistics
	assert.Zero(t, s.Mean())
	assert.Zero(t, s.Variance())
	assert.Zero(t, s.StdDev())
	assert.Zero(t, s.StdError())
	assert.Zero(t, s.Median())
	assert.Zero(t, s.Percentile(0.9))
}

func TestStatisticsMoments(t *testing.T) {
	t.Parallel()
	var s Statistics
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(HandResult{NetBB: v})
	}

	assert.Equal(t, 8, s.Hands)
	assert.InDelta(t, 5.0, s.Mean(), 1e-9)
	assert.InDelta(t, 500.0, s.BBPer100(), 1e-9)
	assert.InDelta(t, 32.0/7.0, s.Variance(), 1e-9)
	assert.InDelta(t, 4.5, s.Median(), 1e-9)
	assert.InDelta(t, 2.0, s.Percentile(0), 1e-9)
	assert.InDelta(t, 9.0, s.Percentile(1), 1e-9)

	lo, hi := s.ConfidenceInterval95()
	assert.Less(t, lo, s.Mean())
	assert.Greater(t, hi, s.Mean())
	assert.InDelta(t, s.Mean(), (lo+hi)/2, 1e-9)
	require.NoError(t, s.Validate())
}

func TestStatisticsBuckets(t *testing.T) {
	t.Parallel()
	var s Statistics
	s.Add(HandResult{NetBB: 3, WentToShowdown: true, PotBB: 6, RakePaid: 1})
	s.Add(HandResult{NetBB: -1, PotBB: 1.5})
	s.Add(HandResult{NetBB: 1.5, PotBB: 2})
	s.Add(HandResult{NetBB: -60, WentToShowdown: true, PotBB: 121, RakePaid: 3})

	assert.Equal(t, 1, s.ShowdownWins)
	assert.Equal(t, 1, s.NonShowdownWins)
	assert.InDelta(t, -57.0, s.ShowdownBB, 1e-9)
	assert.InDelta(t, 0.5, s.NonShowdownBB, 1e-9)
	assert.Equal(t, int64(4), s.RakePaid)
	assert.Equal(t, 1, s.BigPots)
	assert.InDelta(t, -60.0, s.BigPotsBB, 1e-9)
	assert.InDelta(t, 121.0, s.MaxPotBB, 1e-9)
	require.NoError(t, s.Validate())

	s.AllBB += 1
	assert.ErrorContains(t, s.Validate(), "results mismatch")
}

func TestTracker(t *testing.T) {
	t.Parallel()
	strategy := func(identity string) string {
		if i := strings.LastIndex(identity, "-"); i > 0 {
			return identity[:i]
		}
		return identity
	}
	tr := NewTracker(strategy)

	hand := game.Settlement{
		Blinds:   game.Blinds{Small: 1, Big: 2},
		PotTotal: 20,
		Showdown: true,
		Seats: []game.SeatResult{
			{Identity: "call-1", Delta: 10, RakePaid: 1},
			{Identity: "call-2", Delta: -10, Folded: true},
			{Identity: "fold-3", Delta: -1},
		},
	}
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.OnHandSettled(hand)
		}()
	}
	wg.Wait()
	tr.OnComplete(10, "")

	assert.Equal(t, []string{"call", "fold"}, tr.Keys())

	call, ok := tr.Get("call")
	require.True(t, ok)
	assert.Equal(t, 20, call.Hands)
	assert.Zero(t, call.Mean())
	assert.Equal(t, 10, call.ShowdownWins)
	assert.InDelta(t, 50.0, call.ShowdownBB, 1e-9)
	assert.InDelta(t, -50.0, call.NonShowdownBB, 1e-9)
	assert.Equal(t, int64(10), call.RakePaid)

	fold, ok := tr.Get("fold")
	require.True(t, ok)
	assert.InDelta(t, -50.0, fold.BBPer100(), 1e-9)

	_, ok = tr.Get("raise")
	assert.False(t, ok)

	// Hands without a big blind are ignored
	tr.OnHandSettled(game.Settlement{Seats: hand.Seats})
	call, _ = tr.Get("call")
	assert.Equal(t, 20, call.Hands)
}

func TestTrackerGroupsByIdentity(t *testing.T) {
	t.Parallel()
	tr := NewTracker(nil)
	tr.OnHandSettled(game.Settlement{
		Blinds: game.Blinds{Small: 1, Big: 2},
		Seats:  []game.SeatResult{{Identity: "alice", Delta: 4}, {Identity: "bob", Delta: -4}},
	})
	assert.Equal(t, []string{"alice", "bob"}, tr.Keys())
}
