package game

import "sort"

// Contribution is everything one seat put into the pot this hand
type Contribution struct {
	Seat   int
	Amount int64
	Folded bool
}

// Pot represents a pot (main or side)
type Pot struct {
	Amount   int64 `json:"amount"`
	Eligible []int `json:"eligible"` // Seats that may win this pot
}

// Refund is chips returned to a seat without being contested
type Refund struct {
	Seat   int   `json:"seat"`
	Amount int64 `json:"amount"`
}

// Pots is the result of splitting a hand's contributions. Pots[0] is the
// main pot; later entries are side pots in ascending commitment order.
type Pots struct {
	Pots []Pot
	// Uncalled is the part of the largest bet nobody matched
	Uncalled *Refund
}

// Total returns the contested amount, excluding any uncalled bet
func (p Pots) Total() int64 {
	var total int64
	for _, pot := range p.Pots {
		total += pot.Amount
	}
	return total
}

// BuildPots layers contributions into a main pot and side pots.
//
// Every distinct commitment level closes a layer. Each seat that reached a
// level pays min(remaining, delta) into it, and the layer is won only by the
// non-folded seats that paid. Layers with identical eligibility are merged,
// and a layer nobody can win is folded into the pot below it.
func BuildPots(contributions []Contribution) Pots {
	levels := make([]int64, 0, len(contributions))
	seen := make(map[int64]bool)
	for _, c := range contributions {
		if c.Amount > 0 && !seen[c.Amount] {
			seen[c.Amount] = true
			levels = append(levels, c.Amount)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	type layer struct {
		amount   int64
		funders  []int
		eligible []int
	}
	layers := make([]layer, 0, len(levels))
	var prev int64
	for _, level := range levels {
		var l layer
		for _, c := range contributions {
			if c.Amount <= prev {
				continue
			}
			l.amount += min(c.Amount, level) - prev
			l.funders = append(l.funders, c.Seat)
			if !c.Folded {
				l.eligible = append(l.eligible, c.Seat)
			}
		}
		sort.Ints(l.eligible)
		layers = append(layers, l)
		prev = level
	}

	var result Pots
	if n := len(layers); n > 0 && len(layers[n-1].funders) == 1 {
		top := layers[n-1]
		result.Uncalled = &Refund{Seat: top.funders[0], Amount: top.amount}
		layers = layers[:n-1]
	}

	var orphaned int64
	for _, l := range layers {
		last := len(result.Pots) - 1
		switch {
		case len(l.eligible) == 0 && last < 0:
			orphaned += l.amount
		case len(l.eligible) == 0:
			result.Pots[last].Amount += l.amount
		case last >= 0 && sameSeats(result.Pots[last].Eligible, l.eligible):
			result.Pots[last].Amount += l.amount
		default:
			result.Pots = append(result.Pots, Pot{Amount: l.amount + orphaned, Eligible: l.eligible})
			orphaned = 0
		}
	}
	if orphaned > 0 {
		result.Pots = append(result.Pots, Pot{Amount: orphaned})
	}
	return result
}

func sameSeats(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
