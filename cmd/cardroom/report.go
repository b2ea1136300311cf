package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/cardroom/internal/config"
	"github.com/lox/cardroom/internal/ledger"
	"github.com/lox/cardroom/internal/rake"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	moneyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// ReportCmd rebuilds the revenue ledger from the store and prints it
type ReportCmd struct {
	From   string `help:"Start of the range (RFC 3339)"`
	To     string `help:"End of the range, exclusive (RFC 3339)"`
	Top    int    `default:"10" help:"Rows in the top tables and players lists"`
	Bucket string `default:"day" enum:"hour,day,week,month" help:"Rollup period"`
}

func (c *ReportCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := setupLogger("warn", cfg.Server.LogFormat)

	var from, to time.Time
	if c.From != "" {
		if from, err = time.Parse(time.RFC3339, c.From); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if c.To != "" {
		if to, err = time.Parse(time.RFC3339, c.To); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}
	bucket, err := ledger.ParseBucket(c.Bucket)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ids, err := st.SettlementTables(ctx)
	if err != nil {
		return err
	}
	l := ledger.New()
	for _, id := range ids {
		settlements, err := st.Settlements(ctx, id)
		if err != nil {
			return err
		}
		for i := range settlements {
			if err := l.Append(ledger.RecordFromSettlement(&settlements[i])); err != nil {
				logger.Warn().Err(err).Str("table_id", id).Msg("skipping settlement")
			}
		}
	}

	printReport(os.Stdout, l, cfg.RakeConfig(), reportOptions{from: from, to: to, top: c.Top, bucket: bucket})
	return nil
}

type reportOptions struct {
	from, to time.Time
	top      int
	bucket   ledger.Bucket
}

// printReport writes totals, the top tables and players, per-table
// efficiency and a rollup
func printReport(w io.Writer, l *ledger.Ledger, cfg rake.Config, opts reportOptions) {
	totals := l.Totals(ledger.Filter{From: opts.from, To: opts.to})
	fmt.Fprintln(w, headerStyle.Render("Cardroom revenue"))
	fmt.Fprintf(w, "Hands: %d  Pot: %d  Rake: %s (%s)\n\n",
		totals.Hands, totals.Pot,
		moneyStyle.Render(fmt.Sprintf("%d chips", totals.Rake)),
		moneyStyle.Render(fmt.Sprintf("%.2f", float64(totals.Rake)*cfg.ChipValue)))
	if totals.Hands == 0 {
		fmt.Fprintln(w, dimStyle.Render("No hands recorded."))
		return
	}

	fmt.Fprintln(w, sectionStyle.Render("Top tables"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tHANDS\tPOT\tRAKE\tPER HAND\tPER PLAYER")
	for _, t := range l.TopTables(opts.top, opts.from, opts.to) {
		e := l.Efficiency(t.TableID, opts.from, opts.to)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%.2f\n", t.TableID, t.Hands, t.Pot, t.Rake, e.PerHand, e.PerPlayer)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)

	fmt.Fprintln(w, sectionStyle.Render("Top players"))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tHANDS\tRAKE PAID\tTOP-TIER RAKEBACK")
	topTier := len(cfg.RakebackRates) - 1
	for _, p := range l.TopPlayers(opts.top, opts.from, opts.to) {
		back := "-"
		if topTier >= 0 {
			if v, err := rake.Rakeback(cfg, float64(p.RakePaid)*cfg.ChipValue, topTier); err == nil {
				back = fmt.Sprintf("%.2f", v)
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", p.Identity, p.Hands, p.RakePaid, back)
	}
	_ = tw.Flush()
	fmt.Fprintln(w)

	fmt.Fprintln(w, sectionStyle.Render("Rake by "+opts.bucket.String()))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tHANDS\tRAKE")
	for _, b := range l.Rollup("", opts.bucket, opts.from, opts.to) {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", b.Start.Format(time.RFC3339), b.Hands, b.Rake)
	}
	_ = tw.Flush()
}
