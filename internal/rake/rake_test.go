package rake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCashRake(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	tests := []struct {
		name     string
		pot      float64
		bigBlind float64
		expected float64
	}{
		{"capped at low stakes", 1000, 0.20, 5},
		{"micro stakes cap", 1000, 0.10, 3},
		{"mid stakes cap", 1000, 2, 10},
		{"high stakes cap", 1000, 10, 20},
		{"under cap", 40, 0.20, 2},
		{"below floor", 0.99, 0.02, 0},
		{"at floor", 1, 0.02, 0.05},
		{"empty pot", 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CashRake(cfg, tt.pot, tt.bigBlind), 1e-9)
		})
	}
}

func TestChipRake(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, int64(20), ChipRake(cfg, 1000, 20))
	assert.Equal(t, int64(1), ChipRake(cfg, 39, 20), "floors to whole chips")
	assert.Equal(t, int64(0), ChipRake(cfg, 0, 20))

	// One chip worth a cent: 100000 chips at 0.10/0.20 is a 1000 pot capped at 5
	cfg.ChipValue = 0.01
	assert.Equal(t, int64(500), ChipRake(cfg, 100000, 20))
	assert.Equal(t, int64(0), ChipRake(cfg, 99, 20), "pots under one unit are not raked")
}

func TestApportion(t *testing.T) {
	t.Parallel()

	t.Run("proportional", func(t *testing.T) {
		shares := Apportion(10, map[int]int64{0: 100, 1: 100, 2: 300})
		assert.Equal(t, map[int]int64{0: 2, 1: 2, 2: 6}, shares)
	})

	t.Run("largest remainder", func(t *testing.T) {
		shares := Apportion(5, map[int]int64{0: 50, 1: 150, 2: 150})
		// exact shares 0.714, 2.143, 2.143
		assert.Equal(t, map[int]int64{0: 1, 1: 2, 2: 2}, shares)
	})

	t.Run("ties go to lowest seat", func(t *testing.T) {
		shares := Apportion(1, map[int]int64{4: 10, 2: 10, 7: 10})
		assert.Equal(t, map[int]int64{2: 1, 4: 0, 7: 0}, shares)
	})

	t.Run("sum is exact", func(t *testing.T) {
		contrib := map[int]int64{0: 17, 1: 33, 2: 71, 3: 5, 5: 13}
		for rake := int64(0); rake < 50; rake++ {
			var sum int64
			for _, s := range Apportion(rake, contrib) {
				sum += s
			}
			require.Equal(t, rake, sum)
		}
	})

	t.Run("no contributors", func(t *testing.T) {
		assert.Empty(t, Apportion(5, map[int]int64{0: 0}))
	})
}

func TestTournamentFee(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	tests := []struct {
		buyIn float64
		fee   float64
	}{
		{2, 0.50},
		{10000, 50},
		{100, 10},
		{5, 0.50},
		{500, 50},
	}
	for _, tt := range tests {
		f := TournamentFee(cfg, tt.buyIn)
		assert.InDelta(t, tt.fee, f.Fee, 1e-9, "buy-in %v", tt.buyIn)
		assert.InDelta(t, tt.buyIn+tt.fee, f.TotalCost, 1e-9)
	}
}

func TestSummarizeTournament(t *testing.T) {
	t.Parallel()

	s := SummarizeTournament(DefaultConfig(), []float64{100, 100, 2})
	assert.Equal(t, 3, s.Entries)
	assert.InDelta(t, 202, s.PrizePool, 1e-9)
	assert.InDelta(t, 20.5, s.HouseRevenue, 1e-9)
}

func TestRakeback(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	expected := []float64{0, 5, 10, 15, 20, 25}
	for tier, want := range expected {
		got, err := Rakeback(cfg, 100, tier)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-9)
	}

	_, err := Rakeback(cfg, 100, 6)
	assert.ErrorIs(t, err, ErrUnknownTier)
	_, err = Rakeback(cfg, 100, -1)
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.RakePercent = 1.5 },
		func(c *Config) { c.FeeMin = 100 },
		func(c *Config) { c.ChipValue = 0 },
		func(c *Config) { c.Tiers[1].MaxBigBlind = 0.05 },
		func(c *Config) { c.RakebackRates[2] = -0.1 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, "case %d", i)
	}
}
