package server

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
)

// HandMonitor follows settled hands. Register one with
// Registry.OnHandSettled.
type HandMonitor interface {
	// OnHandSettled is called once per settled hand
	OnHandSettled(s game.Settlement)

	// OnComplete is called when the run ends
	OnComplete(hands int, reason string)
}

// NullHandMonitor is a no-op implementation.
type NullHandMonitor struct{}

func (NullHandMonitor) OnHandSettled(game.Settlement) {}
func (NullHandMonitor) OnComplete(int, string)        {}

// MultiHandMonitor fans out to several monitors
type MultiHandMonitor struct {
	monitors []HandMonitor
}

// NewMultiHandMonitor drops nil entries and returns a NullHandMonitor when
// nothing is left
func NewMultiHandMonitor(monitors ...HandMonitor) HandMonitor {
	filtered := make([]HandMonitor, 0, len(monitors))
	for _, m := range monitors {
		if m != nil {
			filtered = append(filtered, m)
		}
	}
	switch len(filtered) {
	case 0:
		return NullHandMonitor{}
	case 1:
		return filtered[0]
	}
	return &MultiHandMonitor{monitors: filtered}
}

func (m *MultiHandMonitor) OnHandSettled(s game.Settlement) {
	for _, monitor := range m.monitors {
		monitor.OnHandSettled(s)
	}
}

func (m *MultiHandMonitor) OnComplete(hands int, reason string) {
	for _, monitor := range m.monitors {
		monitor.OnComplete(hands, reason)
	}
}

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func colorize(s, color string) string {
	return color + s + colorReset
}

// DotsMonitor prints a dot per hand: green when the house took rake, gray
// when it did not.
type DotsMonitor struct {
	writer    io.Writer
	mu        sync.Mutex
	dotCount  int
	lineWidth int
}

func NewDotsMonitor(writer io.Writer) *DotsMonitor {
	if writer == nil {
		writer = os.Stdout
	}
	return &DotsMonitor{writer: writer, lineWidth: 80}
}

func (d *DotsMonitor) OnHandSettled(s game.Settlement) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dot := colorize("●", colorGray)
	if s.Rake > 0 {
		dot = colorize("●", colorGreen)
	}
	fmt.Fprint(d.writer, dot)

	d.dotCount++
	if d.dotCount >= d.lineWidth {
		fmt.Fprintln(d.writer)
		d.dotCount = 0
	}
}

func (d *DotsMonitor) OnComplete(hands int, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dotCount > 0 {
		fmt.Fprintln(d.writer)
	}
	fmt.Fprintf(d.writer, "\nCompleted %d hands (%s)\n", hands, reason)
}

// PrettyMonitor prints every settled hand: board, pots, winners and rake
type PrettyMonitor struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewPrettyMonitor(writer io.Writer) *PrettyMonitor {
	if writer == nil {
		writer = os.Stdout
	}
	return &PrettyMonitor{writer: writer}
}

func (p *PrettyMonitor) OnHandSettled(s game.Settlement) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.writer
	fmt.Fprintln(w)
	fmt.Fprintln(w, colorize(fmt.Sprintf("=== %s hand #%d (%s) ===", s.TableID, s.HandNumber, s.HandID), colorBold+colorCyan))
	if len(s.Board) > 0 {
		fmt.Fprintf(w, "Board: %s\n", formatBoard(s.Board))
	}

	for i, pot := range s.Pots {
		name := "Main pot"
		if i > 0 {
			name = fmt.Sprintf("Side pot %d", i)
		}
		winners := make([]string, 0, len(pot.Winners))
		for _, seat := range pot.Winners {
			r, _ := s.Seat(seat)
			winners = append(winners, fmt.Sprintf("%s +%d", r.Identity, pot.Shares[seat]))
		}
		line := fmt.Sprintf("%s %d: %s", name, pot.Amount, strings.Join(winners, ", "))
		if pot.Hand != "" {
			line += " with " + pot.Hand
		}
		fmt.Fprintln(w, colorize(line, colorGreen))
	}
	if s.Uncalled != nil {
		r, _ := s.Seat(s.Uncalled.Seat)
		fmt.Fprintf(w, "Uncalled %d returned to %s\n", s.Uncalled.Amount, r.Identity)
	}

	for _, r := range s.Seats {
		result := colorize(fmt.Sprintf("%+d", r.Delta), colorRed)
		if r.Delta > 0 {
			result = colorize(fmt.Sprintf("%+d", r.Delta), colorGreen+colorBold)
		}
		cards := ""
		if len(r.HoleCards) > 0 {
			cards = " " + formatCards(r.HoleCards)
		}
		status := ""
		if r.Folded {
			status = colorize(" (folded)", colorDim)
		}
		fmt.Fprintf(w, "  seat %d %s%s: %s%s\n", r.Seat, r.Identity, cards, result, status)
	}

	fmt.Fprintf(w, "Pot: %s | Rake: %s\n",
		colorize(fmt.Sprintf("%d", s.PotTotal), colorBold+colorYellow),
		colorize(fmt.Sprintf("%d", s.Rake), colorBlue))
	fmt.Fprintln(w, colorize("────────────────────────────────────────", colorDim))
}

func (p *PrettyMonitor) OnComplete(hands int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.writer)
	fmt.Fprintln(p.writer, colorize("=== RUN COMPLETED ===", colorBold+colorCyan))
	fmt.Fprintf(p.writer, "Hands settled: %d\n", hands)
	if reason != "" {
		fmt.Fprintf(p.writer, "Reason: %s\n", reason)
	}
}

// formatBoard splits the board into flop, turn and river
func formatBoard(cards []deck.Card) string {
	if len(cards) < 3 {
		return formatCards(cards)
	}
	parts := []string{formatCards(cards[:3])}
	for _, c := range cards[3:] {
		parts = append(parts, formatCards([]deck.Card{c}))
	}
	return strings.Join(parts, " ")
}

func formatCards(cards []deck.Card) string {
	out := make([]string, len(cards))
	for i, c := range cards {
		color := ""
		switch c.Suit {
		case deck.Hearts, deck.Diamonds:
			color = colorRed
		}
		if color == "" {
			out[i] = c.String()
		} else {
			out[i] = colorize(c.String(), color)
		}
	}
	return "[" + strings.Join(out, " ") + "]"
}
