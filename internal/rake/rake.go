package rake

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownTier is returned for a loyalty tier with no configured rate
var ErrUnknownTier = errors.New("unknown rakeback tier")

// CapForStakes returns the rake cap for a table with the given big blind
func CapForStakes(cfg Config, bigBlind float64) float64 {
	for _, t := range cfg.Tiers {
		if bigBlind <= t.MaxBigBlind {
			return t.Cap
		}
	}
	return cfg.DefaultCap
}

// CashRake returns min(pot * RakePercent, cap) or zero below MinPot
func CashRake(cfg Config, pot, bigBlind float64) float64 {
	if pot <= 0 || pot < cfg.MinPot {
		return 0
	}
	return roundCents(math.Min(pot*cfg.RakePercent, CapForStakes(cfg, bigBlind)))
}

// ChipRake is CashRake for a pot measured in chips. The result is floored
// to whole chips and never exceeds the pot.
func ChipRake(cfg Config, potChips, bigBlindChips int64) int64 {
	value := cfg.ChipValue
	if value <= 0 {
		value = 1
	}
	r := CashRake(cfg, float64(potChips)*value, float64(bigBlindChips)*value)
	chips := int64(math.Floor(r/value + 1e-9))
	return min(max(chips, 0), potChips)
}

// Apportion splits rake across contributors in proportion to what each put
// in the pot. Shares are floored and the leftover chips go to the largest
// remainders, ties broken by lowest seat, so the shares always sum to rake.
func Apportion(rake int64, contributions map[int]int64) map[int]int64 {
	shares := make(map[int]int64, len(contributions))
	var total int64
	seats := make([]int, 0, len(contributions))
	for seat, c := range contributions {
		if c <= 0 {
			continue
		}
		total += c
		seats = append(seats, seat)
	}
	if rake <= 0 || total == 0 {
		return shares
	}
	sort.Ints(seats)

	type rem struct {
		seat int
		frac int64
	}
	rems := make([]rem, 0, len(seats))
	var given int64
	for _, seat := range seats {
		c := contributions[seat]
		share := rake * c / total
		shares[seat] = share
		given += share
		rems = append(rems, rem{seat: seat, frac: rake * c % total})
	}
	sort.SliceStable(rems, func(i, j int) bool {
		return rems[i].frac > rems[j].frac
	})
	for i := 0; given < rake; i++ {
		shares[rems[i%len(rems)].seat]++
		given++
	}
	return shares
}

// Fee is the cost of a tournament entry
type Fee struct {
	BuyIn     float64
	Fee       float64
	TotalCost float64
}

// TournamentFee returns clamp(buyIn * FeePercent, FeeMin, FeeMax)
func TournamentFee(cfg Config, buyIn float64) Fee {
	fee := roundCents(math.Min(math.Max(buyIn*cfg.FeePercent, cfg.FeeMin), cfg.FeeMax))
	return Fee{BuyIn: buyIn, Fee: fee, TotalCost: roundCents(buyIn + fee)}
}

// TournamentSummary totals a tournament's entries. Fees go to the house and
// never into the prize pool.
type TournamentSummary struct {
	Entries      int
	PrizePool    float64
	HouseRevenue float64
}

// SummarizeTournament totals the prize pool and house revenue for buyIns
func SummarizeTournament(cfg Config, buyIns []float64) TournamentSummary {
	s := TournamentSummary{Entries: len(buyIns)}
	for _, b := range buyIns {
		f := TournamentFee(cfg, b)
		s.PrizePool += f.BuyIn
		s.HouseRevenue += f.Fee
	}
	s.PrizePool = roundCents(s.PrizePool)
	s.HouseRevenue = roundCents(s.HouseRevenue)
	return s
}

// Rakeback returns totalRakePaid * the rate for the loyalty tier
func Rakeback(cfg Config, totalRakePaid float64, tier int) (float64, error) {
	if tier < 0 || tier >= len(cfg.RakebackRates) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownTier, tier)
	}
	if totalRakePaid < 0 {
		return 0, fmt.Errorf("negative rake paid: %v", totalRakePaid)
	}
	return roundCents(totalRakePaid * cfg.RakebackRates[tier]), nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
