package deck

import (
	"errors"
	rand "math/rand/v2"
)

// ErrEmptyDeck is returned when a card is drawn from an exhausted deck. A
// correctly driven hand never draws more than 52 cards.
var ErrEmptyDeck = errors.New("deck is empty")

// Size is the number of cards in a standard deck
const Size = 52

// Deck is an ordered sequence of cards consumed from the top. A new deck
// is created for every hand.
type Deck struct {
	cards  []Card
	next   int
	burned []Card
}

// Standard returns the 52 cards of a fresh deck in suit then rank order
func Standard() []Card {
	cards := make([]Card, 0, Size)
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			cards = append(cards, NewCard(rank, suit))
		}
	}
	return cards
}

// New creates a full deck shuffled with the provided random source
func New(rng *rand.Rand) *Deck {
	if rng == nil {
		panic("rng is required for deck creation")
	}
	d := &Deck{cards: Standard()}
	Shuffle(d.cards, rng)
	return d
}

// NewOrdered creates a deck that deals the given cards first, in order,
// followed by the rest of a standard deck. Used to stack hands in tests.
func NewOrdered(top ...Card) *Deck {
	seen := make(map[Card]bool, len(top))
	cards := make([]Card, 0, Size)
	for _, c := range top {
		if seen[c] {
			continue
		}
		seen[c] = true
		cards = append(cards, c)
	}
	for _, c := range Standard() {
		if !seen[c] {
			cards = append(cards, c)
		}
	}
	return &Deck{cards: cards}
}

// Shuffle performs an in-place Fisher-Yates shuffle
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// Draw removes and returns the top card
func (d *Deck) Draw() (Card, error) {
	if d.next >= len(d.cards) {
		return Card{}, ErrEmptyDeck
	}
	c := d.cards[d.next]
	d.next++
	return c, nil
}

// DrawN draws n cards from the top of the deck
func (d *Deck) DrawN(n int) ([]Card, error) {
	if d.next+n > len(d.cards) {
		return nil, ErrEmptyDeck
	}
	out := make([]Card, n)
	copy(out, d.cards[d.next:d.next+n])
	d.next += n
	return out, nil
}

// Burn draws the top card and discards it
func (d *Deck) Burn() error {
	c, err := d.Draw()
	if err != nil {
		return err
	}
	d.burned = append(d.burned, c)
	return nil
}

// Burned returns the cards burned so far this hand
func (d *Deck) Burned() []Card {
	out := make([]Card, len(d.burned))
	copy(out, d.burned)
	return out
}

// Remaining returns the number of cards left in the deck
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}
