package game

import (
	"fmt"
	"testing"

	"github.com/coder/quartz"
	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/rake"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/stretchr/testify/require"
)

// noRake is the default schedule with a zero rake percentage
func noRake() rake.Config {
	cfg := rake.DefaultConfig()
	cfg.RakePercent = 0
	return cfg
}

// stacked deals the given cards first in every hand
func stacked(cards string) Option {
	top := deck.MustParseCards(cards)
	return WithDeckSource(func() *deck.Deck { return deck.NewOrdered(top...) })
}

func sequentialHandIDs() Option {
	n := 0
	return WithHandIDs(func() string {
		n++
		return fmt.Sprintf("hand-%d", n)
	})
}

// newTestTable seats one player per stack, named p0, p1, ... in seats 0, 1, ...
func newTestTable(t *testing.T, stacks []int64, opts ...Option) *Table {
	t.Helper()
	base := []Option{
		WithRNG(randutil.New(1)),
		WithClock(quartz.NewMock(t)),
		WithRakeConfig(noRake()),
		sequentialHandIDs(),
	}
	tbl, err := NewTable("test", Cash, Blinds{Small: 5, Big: 10}, append(base, opts...)...)
	require.NoError(t, err)
	for i, chips := range stacks {
		seat, err := tbl.Sit(fmt.Sprintf("p%d", i), chips)
		require.NoError(t, err)
		require.Equal(t, i, seat)
	}
	return tbl
}

func startHand(t *testing.T, tbl *Table) {
	t.Helper()
	s, err := tbl.StartHand()
	require.NoError(t, err)
	require.Nil(t, s, "hand should not settle on the blinds")
}

// act applies an action that must be legal and returns any settlement
func act(t *testing.T, tbl *Table, seat int, action Action, amount int64) *Settlement {
	t.Helper()
	_, s, err := tbl.Act(seat, action, amount)
	require.NoError(t, err, "seat %d %s %d", seat, action, amount)
	return s
}

func totalChips(tbl *Table) int64 {
	var total int64
	for _, s := range tbl.seats {
		if s != nil {
			total += s.Chips
		}
	}
	return total
}
