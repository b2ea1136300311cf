package phh

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
)

// Encode writes one hand as PHH TOML
func Encode(w io.Writer, hand *HandHistory) error {
	if hand == nil {
		return errors.New("phh: hand history is nil")
	}
	enc := toml.NewEncoder(w)
	enc.Indent = "\t"
	return enc.Encode(hand)
}

// EncodeToBytes encodes and returns the result as bytes
func EncodeToBytes(hand *HandHistory) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, hand); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromSettlement converts a settled hand. Hole cards appear only for seats
// that showed them; the rest are dealt as "????".
func FromSettlement(s *game.Settlement) *HandHistory {
	order := positionOrder(s.Seats, s.Dealer)
	n := len(order)
	pos := make(map[int]int, n)

	h := &HandHistory{
		Variant:           NoLimitHoldem,
		Table:             s.TableID,
		SeatCount:         n,
		Seats:             make([]int, n),
		Antes:             make([]int64, n),
		BlindsOrStraddles: make([]int64, n),
		MinBet:            s.Blinds.Big,
		StartingStacks:    make([]int64, n),
		FinishingStacks:   make([]int64, n),
		Winnings:          make([]int64, n),
		Players:           make([]string, n),
		HandID:            s.HandID,
		Timestamp:         s.Timestamp,
	}
	for i, r := range order {
		pos[r.Seat] = i
		h.Seats[i] = r.Seat + 1
		h.Players[i] = r.Identity
		h.StartingStacks[i] = r.Chips - r.Delta
		h.FinishingStacks[i] = r.Chips
		h.Winnings[i] = r.Won
	}
	if n >= 2 {
		h.BlindsOrStraddles[0] = s.Blinds.Small
		h.BlindsOrStraddles[1] = s.Blinds.Big
	}

	for i, r := range order {
		h.Actions = append(h.Actions, fmt.Sprintf("d dh p%d %s", i+1, holeCards(r.HoleCards)))
	}

	phase := game.Preflop
	streetBet := s.Blinds.Big
	for _, a := range s.Actions {
		for phase < a.Phase {
			phase++
			streetBet = 0
			if deal := dealBoard(s.Board, phase); deal != "" {
				h.Actions = append(h.Actions, deal)
			}
		}
		player, ok := pos[a.Seat]
		if !ok {
			continue
		}
		h.Actions = append(h.Actions, FormatAction(player, a, streetBet))
		streetBet = max(streetBet, a.Total)
	}
	for phase < game.River {
		phase++
		if deal := dealBoard(s.Board, phase); deal != "" {
			h.Actions = append(h.Actions, deal)
		}
	}

	if s.Showdown {
		for i, r := range order {
			if len(r.HoleCards) > 0 && !r.Folded {
				h.Actions = append(h.Actions, fmt.Sprintf("p%d sm %s", i+1, holeCards(r.HoleCards)))
			}
		}
	}

	if !s.Timestamp.IsZero() {
		utc := s.Timestamp.UTC()
		h.Time = utc.Format("15:04:05")
		h.TimeZone = "UTC"
		h.Day = utc.Day()
		h.Month = int(utc.Month())
		h.Year = utc.Year()
	}
	return h
}

// FormatAction renders a betting decision for the player at position
// (zero based). streetBet is the largest bet in the phase before the action,
// which decides whether an all-in is a raise or a call.
func FormatAction(position int, a game.ActionRecord, streetBet int64) string {
	player := fmt.Sprintf("p%d", position+1)
	switch a.Action {
	case game.Fold:
		return player + " f"
	case game.Check, game.Call:
		return player + " cc"
	case game.Raise:
		return fmt.Sprintf("%s cbr %d", player, a.Total)
	case game.AllIn:
		if a.Total > streetBet {
			return fmt.Sprintf("%s cbr %d", player, a.Total)
		}
		return player + " cc"
	}
	return fmt.Sprintf("# %s %s %d", player, a.Action, a.Total)
}

// positionOrder sorts seats clockwise from the small blind: the first seat
// after the button, or the button itself heads-up
func positionOrder(seats []game.SeatResult, dealer int) []game.SeatResult {
	order := append([]game.SeatResult(nil), seats...)
	sort.Slice(order, func(i, j int) bool { return order[i].Seat < order[j].Seat })
	if len(order) == 0 {
		return order
	}

	start := 0
	if len(order) == 2 {
		for i, r := range order {
			if r.Seat == dealer {
				start = i
			}
		}
	} else {
		for i, r := range order {
			if r.Seat > dealer {
				start = i
				break
			}
		}
	}
	return append(order[start:], order[:start]...)
}

func dealBoard(board []deck.Card, phase game.Phase) string {
	var cards []deck.Card
	switch phase {
	case game.Flop:
		if len(board) >= 3 {
			cards = board[:3]
		}
	case game.Turn:
		if len(board) >= 4 {
			cards = board[3:4]
		}
	case game.River:
		if len(board) >= 5 {
			cards = board[4:5]
		}
	}
	if len(cards) == 0 {
		return ""
	}
	return "d db " + strings.Join(deck.Codes(cards), "")
}

func holeCards(cards []deck.Card) string {
	if len(cards) < 2 {
		return "????"
	}
	return strings.Join(deck.Codes(cards), "")
}
