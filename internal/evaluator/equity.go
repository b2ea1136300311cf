package evaluator

import (
	"fmt"
	rand "math/rand/v2"

	"github.com/lox/cardroom/internal/deck"
)

// Equity is one player's share of Monte Carlo run-outs
type Equity struct {
	Hand       []deck.Card
	Wins       int
	Ties       int
	Iterations int
	Categories map[Category]int // Final hand categories seen
}

// WinRate returns the fraction of run-outs won outright
func (e Equity) WinRate() float64 {
	if e.Iterations == 0 {
		return 0
	}
	return float64(e.Wins) / float64(e.Iterations)
}

// TieRate returns the fraction of run-outs split
func (e Equity) TieRate() float64 {
	if e.Iterations == 0 {
		return 0
	}
	return float64(e.Ties) / float64(e.Iterations)
}

// CalculateEquity deals the rest of the board iterations times and counts
// how often each two-card hand wins or ties
func CalculateEquity(hands [][]deck.Card, board []deck.Card, iterations int, rng *rand.Rand) ([]Equity, error) {
	if len(hands) < 2 {
		return nil, fmt.Errorf("need at least two hands, got %d", len(hands))
	}
	if len(board) > 5 {
		return nil, fmt.Errorf("board has %d cards, at most 5 allowed", len(board))
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	used := make(map[deck.Card]bool)
	for _, c := range board {
		if used[c] {
			return nil, fmt.Errorf("duplicate card %s", c.Code())
		}
		used[c] = true
	}
	results := make([]Equity, len(hands))
	for i, h := range hands {
		if len(h) != 2 {
			return nil, fmt.Errorf("hand %d has %d cards, want 2", i+1, len(h))
		}
		for _, c := range h {
			if used[c] {
				return nil, fmt.Errorf("duplicate card %s in hand %d", c.Code(), i+1)
			}
			used[c] = true
		}
		results[i] = Equity{Hand: h, Iterations: iterations, Categories: make(map[Category]int)}
	}

	var stub []deck.Card
	for _, c := range deck.Standard() {
		if !used[c] {
			stub = append(stub, c)
		}
	}

	need := 5 - len(board)
	full := make([]deck.Card, 0, 7)
	scores := make([]HandResult, len(hands))
	for range iterations {
		// Partial Fisher-Yates: the first need cards of stub are the run-out
		for i := 0; i < need; i++ {
			j := i + rng.IntN(len(stub)-i)
			stub[i], stub[j] = stub[j], stub[i]
		}

		best := -1
		for i, h := range hands {
			full = append(append(append(full[:0], h...), board...), stub[:need]...)
			score, err := Evaluate(full)
			if err != nil {
				return nil, err
			}
			scores[i] = score
			results[i].Categories[score.Category]++
			if best < 0 || Compare(score, scores[best]) > 0 {
				best = i
			}
		}

		winners := 0
		for i := range hands {
			if Compare(scores[i], scores[best]) == 0 {
				winners++
			}
		}
		for i := range hands {
			if Compare(scores[i], scores[best]) != 0 {
				continue
			}
			if winners == 1 {
				results[i].Wins++
			} else {
				results[i].Ties++
			}
		}
	}
	return results, nil
}
