// Package evaluator scores Texas Hold'em hands.
//
// Evaluate takes five to seven cards (two hole cards plus up to five board
// cards), scores every five-card subset and returns the best one:
//
//	hole := deck.MustParseCards("AsKs")
//	board := deck.MustParseCards("QsJsTs2c3d")
//	best, err := evaluator.Evaluate(append(hole, board...))
//	// best.Category == evaluator.RoyalFlush
//
// Results are compared with Compare, which orders first by Category and then
// by the rank vector.
package evaluator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lox/cardroom/internal/deck"
)

var (
	// ErrCardCount is returned when fewer than 5 or more than 7 cards are evaluated
	ErrCardCount = errors.New("hand evaluation needs 5 to 7 cards")
	// ErrDuplicateCard is returned when the same card appears twice
	ErrDuplicateCard = errors.New("duplicate card")
)

// Evaluate returns the best five-card hand that can be made from cards
func Evaluate(cards []deck.Card) (HandResult, error) {
	if len(cards) < 5 || len(cards) > 7 {
		return HandResult{}, fmt.Errorf("%w: got %d", ErrCardCount, len(cards))
	}
	seen := make(map[deck.Card]bool, len(cards))
	for _, c := range cards {
		if !c.Valid() {
			return HandResult{}, fmt.Errorf("invalid card %v", c)
		}
		if seen[c] {
			return HandResult{}, fmt.Errorf("%w: %s", ErrDuplicateCard, c)
		}
		seen[c] = true
	}

	var best HandResult
	first := true
	combinations(len(cards), func(idx [5]int) {
		var five [5]deck.Card
		for i, j := range idx {
			five[i] = cards[j]
		}
		h := score(five)
		if first || Compare(h, best) > 0 {
			best = h
			first = false
		}
	})
	return best, nil
}

// MustEvaluate is Evaluate for known-good input; it panics on error
func MustEvaluate(cards []deck.Card) HandResult {
	h, err := Evaluate(cards)
	if err != nil {
		panic(err)
	}
	return h
}

// combinations calls fn with every ascending 5-index subset of [0, n)
func combinations(n int, fn func([5]int)) {
	var idx [5]int
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == 5 {
			fn(idx)
			return
		}
		for i := start; i <= n-(5-depth); i++ {
			idx[depth] = i
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
}

type rankGroup struct {
	rank  deck.Rank
	count int
}

// score classifies exactly five cards
func score(five [5]deck.Card) HandResult {
	counts := make(map[deck.Rank]int, 5)
	flush := true
	for i, c := range five {
		counts[c.Rank]++
		if i > 0 && c.Suit != five[0].Suit {
			flush = false
		}
	}

	groups := make([]rankGroup, 0, len(counts))
	for r, n := range counts {
		groups = append(groups, rankGroup{rank: r, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	ranks := make([]deck.Rank, len(groups))
	for i, g := range groups {
		ranks[i] = g.rank
	}
	ordered := orderCards(five, counts)

	straightTop, straight := straightHigh(groups)
	if straight {
		ordered = orderStraight(ordered, straightTop)
	}

	switch {
	case straight && flush && straightTop == deck.Ace:
		return HandResult{Category: RoyalFlush, Ranks: []deck.Rank{straightTop}, Cards: ordered}
	case straight && flush:
		return HandResult{Category: StraightFlush, Ranks: []deck.Rank{straightTop}, Cards: ordered}
	case groups[0].count == 4:
		return HandResult{Category: FourOfAKind, Ranks: ranks, Cards: ordered}
	case groups[0].count == 3 && groups[1].count == 2:
		return HandResult{Category: FullHouse, Ranks: ranks, Cards: ordered}
	case flush:
		return HandResult{Category: Flush, Ranks: ranks, Cards: ordered}
	case straight:
		return HandResult{Category: Straight, Ranks: []deck.Rank{straightTop}, Cards: ordered}
	case groups[0].count == 3:
		return HandResult{Category: ThreeOfAKind, Ranks: ranks, Cards: ordered}
	case groups[0].count == 2 && groups[1].count == 2:
		return HandResult{Category: TwoPair, Ranks: ranks, Cards: ordered}
	case groups[0].count == 2:
		return HandResult{Category: OnePair, Ranks: ranks, Cards: ordered}
	default:
		return HandResult{Category: HighCard, Ranks: ranks, Cards: ordered}
	}
}

// straightHigh reports whether five distinct ranks form a straight and its
// top card. A-2-3-4-5 is a Five-high straight.
func straightHigh(groups []rankGroup) (deck.Rank, bool) {
	if len(groups) != 5 {
		return 0, false
	}
	hi, lo := groups[0].rank, groups[4].rank
	if hi-lo == 4 {
		return hi, true
	}
	if hi == deck.Ace && groups[1].rank == deck.Five && lo == deck.Two {
		return deck.Five, true
	}
	return 0, false
}

// orderCards sorts cards by group size then rank, both descending
func orderCards(five [5]deck.Card, counts map[deck.Rank]int) []deck.Card {
	out := five[:]
	out = append([]deck.Card(nil), out...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := counts[out[i].Rank], counts[out[j].Rank]
		if ci != cj {
			return ci > cj
		}
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].Suit < out[j].Suit
	})
	return out
}

// orderStraight moves the ace of a wheel to the bottom
func orderStraight(cards []deck.Card, top deck.Rank) []deck.Card {
	if top != deck.Five || cards[0].Rank != deck.Ace {
		return cards
	}
	return append(cards[1:], cards[0])
}
