// Package rake computes the house's cut: cash-game rake with stakes-tiered
// caps, tournament entry fees and loyalty rakeback. Everything here is a pure
// function of a Config and explicit numeric inputs.
package rake

import (
	"errors"
	"fmt"
)

// Tier caps the rake for tables whose big blind is at most MaxBigBlind
type Tier struct {
	MaxBigBlind float64
	Cap         float64
}

// Config holds every number the calculators use. Currency amounts are in
// the table's currency unit; ChipValue converts whole chips to currency.
type Config struct {
	RakePercent float64
	// Tiers must be sorted by MaxBigBlind ascending
	Tiers      []Tier
	DefaultCap float64
	// Pots below MinPot are not raked
	MinPot float64
	// NoFlopNoDrop skips the rake for hands that end before the flop
	NoFlopNoDrop bool

	FeePercent float64
	FeeMin     float64
	FeeMax     float64

	// RakebackRates is indexed by loyalty tier
	RakebackRates []float64

	ChipValue float64
}

// DefaultConfig returns the standard house schedule
func DefaultConfig() Config {
	return Config{
		RakePercent: 0.05,
		Tiers: []Tier{
			{MaxBigBlind: 0.10, Cap: 3},
			{MaxBigBlind: 1.00, Cap: 5},
			{MaxBigBlind: 5.00, Cap: 10},
		},
		DefaultCap:    20,
		MinPot:        1,
		FeePercent:    0.10,
		FeeMin:        0.50,
		FeeMax:        50,
		RakebackRates: []float64{0, 0.05, 0.10, 0.15, 0.20, 0.25},
		ChipValue:     1,
	}
}

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid rake config")

// Validate checks the config for values the calculators cannot use
func (c Config) Validate() error {
	if c.RakePercent < 0 || c.RakePercent > 1 {
		return fmt.Errorf("%w: rake percent %v out of range", ErrInvalidConfig, c.RakePercent)
	}
	if c.FeePercent < 0 || c.FeePercent > 1 {
		return fmt.Errorf("%w: fee percent %v out of range", ErrInvalidConfig, c.FeePercent)
	}
	if c.FeeMin < 0 || c.FeeMin > c.FeeMax {
		return fmt.Errorf("%w: fee bounds [%v, %v]", ErrInvalidConfig, c.FeeMin, c.FeeMax)
	}
	if c.DefaultCap < 0 || c.MinPot < 0 {
		return fmt.Errorf("%w: negative cap or floor", ErrInvalidConfig)
	}
	if c.ChipValue <= 0 {
		return fmt.Errorf("%w: chip value must be positive", ErrInvalidConfig)
	}
	for i, t := range c.Tiers {
		if t.Cap < 0 {
			return fmt.Errorf("%w: tier %d has negative cap", ErrInvalidConfig, i)
		}
		if i > 0 && t.MaxBigBlind <= c.Tiers[i-1].MaxBigBlind {
			return fmt.Errorf("%w: tiers must be sorted by big blind", ErrInvalidConfig)
		}
	}
	for i, r := range c.RakebackRates {
		if r < 0 || r > 1 {
			return fmt.Errorf("%w: rakeback tier %d rate %v", ErrInvalidConfig, i, r)
		}
	}
	return nil
}
