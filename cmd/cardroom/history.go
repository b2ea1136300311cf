package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/lox/cardroom/internal/config"
	"github.com/lox/cardroom/internal/phh"
)

// HistoryCmd writes stored settlements to a PHH file
type HistoryCmd struct {
	Output string   `arg:"" help:"PHH file to append to"`
	Tables []string `short:"t" help:"Only export these tables"`
}

func (c *HistoryCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := setupLogger("warn", cfg.Server.LogFormat)

	ctx := context.Background()
	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	w, err := phh.NewWriter(c.Output, 500, logger)
	if err != nil {
		return err
	}

	ids, err := st.SettlementTables(ctx)
	if err != nil {
		return err
	}
	hands := 0
	for _, id := range ids {
		if len(c.Tables) > 0 && !slices.Contains(c.Tables, id) {
			continue
		}
		settlements, err := st.Settlements(ctx, id)
		if err != nil {
			return err
		}
		for _, s := range settlements {
			w.OnHandSettled(s)
			hands++
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	if w.Disabled() {
		return fmt.Errorf("writing %s failed", c.Output)
	}
	fmt.Printf("%s %d hands to %s\n", headerStyle.Render("Exported"), hands, c.Output)
	return nil
}
