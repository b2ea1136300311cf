package evaluator

import (
	"fmt"
	"strings"

	"github.com/lox/cardroom/internal/deck"
)

// Category is the class of a poker hand, ordered from weakest to strongest
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the string representation of a hand category
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "One Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// HandResult is the score of the best five cards available to a player.
// It exists for comparison only and lives as long as the hand it scores.
type HandResult struct {
	Category Category
	// Ranks is the tie-break vector: ranks grouped by frequency (descending)
	// then by value (descending). Straights carry only their top card, with
	// the wheel counted as Five-high.
	Ranks []deck.Rank
	// Cards are the five cards that make the hand
	Cards []deck.Card
}

// Compare returns -1 if a is weaker than b, 0 on an exact tie and 1 if a is stronger
func Compare(a, b HandResult) int {
	if a.Category != b.Category {
		if a.Category > b.Category {
			return 1
		}
		return -1
	}
	for i := 0; i < len(a.Ranks) && i < len(b.Ranks); i++ {
		if a.Ranks[i] > b.Ranks[i] {
			return 1
		}
		if a.Ranks[i] < b.Ranks[i] {
			return -1
		}
	}
	return 0
}

// Beats reports whether h is strictly stronger than other
func (h HandResult) Beats(other HandResult) bool {
	return Compare(h, other) > 0
}

// Ties reports whether h and other are an exact tie
func (h HandResult) Ties(other HandResult) bool {
	return Compare(h, other) == 0
}

// String describes the hand, e.g. "Full House, Kings full of Twos"
func (h HandResult) String() string {
	if len(h.Ranks) == 0 {
		return h.Category.String()
	}
	top := h.Ranks[0]
	switch h.Category {
	case RoyalFlush:
		return "Royal Flush"
	case StraightFlush, Straight:
		return fmt.Sprintf("%s, %s-high", h.Category, top.Name())
	case FourOfAKind:
		return fmt.Sprintf("Four of a Kind, %s", top.Plural())
	case FullHouse:
		return fmt.Sprintf("Full House, %s full of %s", top.Plural(), h.Ranks[1].Plural())
	case Flush:
		return fmt.Sprintf("Flush, %s-high", top.Name())
	case ThreeOfAKind:
		return fmt.Sprintf("Three of a Kind, %s", top.Plural())
	case TwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", top.Plural(), h.Ranks[1].Plural())
	case OnePair:
		return fmt.Sprintf("Pair of %s", top.Plural())
	default:
		return fmt.Sprintf("High Card, %s", top.Name())
	}
}

// CardString renders the five scoring cards, e.g. "A♠ K♠ Q♠ J♠ T♠"
func (h HandResult) CardString() string {
	parts := make([]string, len(h.Cards))
	for i, c := range h.Cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
