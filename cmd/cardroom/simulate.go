package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/lox/cardroom/internal/config"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/server"
	"github.com/lox/cardroom/internal/statistics"
	"golang.org/x/sync/errgroup"
)

// SimulateCmd plays CPU-only tables with no delays
type SimulateCmd struct {
	Hands      int           `default:"1000" help:"Hands to settle across all tables"`
	Tables     int           `default:"4" help:"Number of tables"`
	Players    int           `default:"6" help:"CPU seats per table"`
	Strategies []string      `default:"call,aggressive,random,fold" help:"Strategies dealt to seats in turn"`
	SmallBlind int64         `default:"1" help:"Small blind"`
	BigBlind   int64         `default:"2" help:"Big blind"`
	Chips      int64         `default:"200" help:"Starting stack"`
	Seed       *int64        `help:"Deterministic RNG seed (optional)"`
	Monitor    string        `default:"dots" enum:"dots,pretty,none" help:"Progress output"`
	History    string        `help:"Append settled hands to this PHH file"`
	Idle       time.Duration `default:"3s" help:"Stop when no hand settles for this long"`
	Debug      bool          `help:"Enable debug logging"`
}

func (c *SimulateCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level := "warn"
	if c.Debug {
		level = "debug"
	}
	logger := setupLogger(level, "console")
	ctx := setupSignalHandler(logger)

	if c.Players < 2 || c.Players > 10 {
		return fmt.Errorf("players must be between 2 and 10, got %d", c.Players)
	}
	for _, name := range c.Strategies {
		if _, err := server.ResolveStrategy(name); err != nil {
			return err
		}
	}

	var history server.HandMonitor
	if c.History != "" {
		w, err := phh.NewWriter(c.History, 100, logger)
		if err != nil {
			return err
		}
		history = w
	}

	l := ledger.New()
	reg, err := server.NewRegistry(server.Config{
		Rake: cfg.RakeConfig(),
		Seed: c.Seed,
	}, server.WithLogger(logger), server.WithLedger(l))
	if err != nil {
		return err
	}

	var monitor server.HandMonitor = server.NullHandMonitor{}
	switch c.Monitor {
	case "dots":
		monitor = server.NewDotsMonitor(os.Stdout)
	case "pretty":
		monitor = server.NewPrettyMonitor(os.Stdout)
	}
	tracker := statistics.NewTracker(strategyOf)
	monitor = server.NewMultiHandMonitor(monitor, history, tracker)

	var settled atomic.Int64
	var last atomic.Int64
	last.Store(time.Now().UnixNano())
	done := make(chan struct{})
	reg.OnHandSettled(func(s game.Settlement) {
		last.Store(time.Now().UnixNano())
		n := settled.Add(1)
		if n > int64(c.Hands) {
			return
		}
		monitor.OnHandSettled(s)
		if n == int64(c.Hands) {
			close(done)
		}
	})

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := range c.Tables {
		g.Go(func() error {
			id, err := reg.CreateTable(gctx, server.TableSpec{
				ID:       fmt.Sprintf("sim-%d", i+1),
				Kind:     game.Cash,
				Blinds:   game.Blinds{Small: c.SmallBlind, Big: c.BigBlind},
				MaxSeats: c.Players,
			})
			if err != nil {
				return err
			}
			for seat := range c.Players {
				strategy := c.Strategies[seat%len(c.Strategies)]
				identity := fmt.Sprintf("%s-%d", strategy, seat+1)
				if _, err := reg.SeatPlayer(gctx, id, identity, c.Chips, server.SeatOptions{CPU: true, Strategy: strategy}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = reg.Close()
		return err
	}

	reason := waitForHands(ctx, done, &last, c.Idle)
	_ = reg.Close()
	hands := min(int(settled.Load()), c.Hands)
	monitor.OnComplete(hands, reason)

	fmt.Println()
	elapsed := time.Since(start)
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d hands in %s (%.0f hands/sec)", hands, elapsed.Round(time.Millisecond), float64(hands)/elapsed.Seconds())))
	printReport(os.Stdout, l, cfg.RakeConfig(), reportOptions{top: 10, bucket: ledger.Hour})
	printStrategies(os.Stdout, tracker)
	return nil
}

// strategyOf recovers the strategy from a simulated identity such as "call-3"
func strategyOf(identity string) string {
	if i := strings.LastIndex(identity, "-"); i > 0 {
		return identity[:i]
	}
	return identity
}

func printStrategies(w io.Writer, tracker *statistics.Tracker) {
	keys := tracker.Keys()
	if len(keys) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render("Strategies"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "strategy\tseat hands\tbb/100\t95% CI\tshowdown bb\tnon-showdown bb\trake paid")
	for _, k := range keys {
		st, _ := tracker.Get(k)
		lo, hi := st.ConfidenceInterval95()
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t[%.1f, %.1f]\t%.1f\t%.1f\t%d\n",
			k, st.Hands, st.BBPer100(), lo*100, hi*100, st.ShowdownBB, st.NonShowdownBB, st.RakePaid)
	}
	_ = tw.Flush()
}

// waitForHands blocks until the hand limit, an interrupt or an idle period
// and returns why it stopped
func waitForHands(ctx context.Context, done <-chan struct{}, last *atomic.Int64, idle time.Duration) string {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return "hand limit reached"
		case <-ctx.Done():
			return "interrupted"
		case <-ticker.C:
			if time.Since(time.Unix(0, last.Load())) > idle {
				return "tables idle"
			}
		}
	}
}
