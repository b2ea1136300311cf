package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/evaluator"
	"github.com/lox/cardroom/internal/randutil"
)

var (
	handStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	tieStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))
)

// OddsCmd estimates hand equities by dealing out the board at random
type OddsCmd struct {
	Hands         []string `arg:"" help:"Hole cards per player, e.g. AcKd QhJs"`
	Board         string   `short:"b" help:"Community cards dealt so far, e.g. Td7s8h"`
	Possibilities bool     `short:"p" help:"Show how often each hand category is made"`
	Iterations    int      `short:"i" default:"100000" help:"Monte Carlo iterations"`
	Seed          *int64   `help:"Random seed for reproducible results"`
}

func (c *OddsCmd) Run(*CLI) error {
	hands := make([][]deck.Card, 0, len(c.Hands))
	for i, h := range c.Hands {
		cards, err := deck.ParseCards(strings.ReplaceAll(h, " ", ""))
		if err != nil {
			return fmt.Errorf("hand %d: %w", i+1, err)
		}
		hands = append(hands, cards)
	}
	var board []deck.Card
	if c.Board != "" {
		var err error
		if board, err = deck.ParseCards(c.Board); err != nil {
			return fmt.Errorf("board: %w", err)
		}
	}

	rng, _ := randutil.Seeded(c.Seed)
	start := time.Now()
	results, err := evaluator.CalculateEquity(hands, board, c.Iterations, rng)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if len(board) > 0 {
		fmt.Println(headerStyle.Render("board"))
		fmt.Printf("%s\n\n", strings.Join(deck.Codes(board), " "))
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", headerStyle.Render("hand"), headerStyle.Render("win"), headerStyle.Render("tie"))
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			handStyle.Render(strings.Join(deck.Codes(r.Hand), " ")),
			moneyStyle.Render(fmt.Sprintf("%.1f%%", r.WinRate()*100)),
			tieStyle.Render(fmt.Sprintf("%.1f%%", r.TieRate()*100)))
	}
	_ = w.Flush()

	if c.Possibilities {
		fmt.Println()
		printCategories(results)
	}
	fmt.Printf("\n%s\n", dimStyle.Render(fmt.Sprintf("%d iterations in %v", c.Iterations, elapsed.Truncate(time.Millisecond))))
	return nil
}

func printCategories(results []evaluator.Equity) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, categoryStyle.Render("hand"))
	for _, r := range results {
		fmt.Fprintf(w, "\t%s", handStyle.Render(strings.Join(deck.Codes(r.Hand), " ")))
	}
	fmt.Fprintln(w)

	for cat := evaluator.RoyalFlush; cat >= evaluator.HighCard; cat-- {
		seen := false
		for _, r := range results {
			seen = seen || r.Categories[cat] > 0
		}
		if !seen {
			continue
		}
		fmt.Fprint(w, categoryStyle.Render(cat.String()))
		for _, r := range results {
			if n := r.Categories[cat]; n > 0 {
				fmt.Fprintf(w, "\t%.1f%%", float64(n)/float64(r.Iterations)*100)
			} else {
				fmt.Fprint(w, "\t.")
			}
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()
}
