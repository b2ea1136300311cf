package main

import (
	"fmt"

	"github.com/lox/cardroom/internal/config"
	"github.com/lox/cardroom/internal/rake"
)

// RakeCmd prints the rake the house takes from a cash pot
type RakeCmd struct {
	Pot      float64 `arg:"" help:"Pot size in currency"`
	BigBlind float64 `short:"b" required:"" help:"Big blind in currency"`
}

func (c *RakeCmd) Run(cli *CLI) error {
	cfg, err := houseConfig(cli)
	if err != nil {
		return err
	}
	r := rake.CashRake(cfg, c.Pot, c.BigBlind)
	fmt.Printf("%s %.2f (cap %.2f at big blind %.2f)\n",
		headerStyle.Render("Rake:"), r, rake.CapForStakes(cfg, c.BigBlind), c.BigBlind)
	return nil
}

// FeeCmd prints the entry fee for a tournament buy-in
type FeeCmd struct {
	BuyIn float64 `arg:"" help:"Buy-in in currency"`
}

func (c *FeeCmd) Run(cli *CLI) error {
	cfg, err := houseConfig(cli)
	if err != nil {
		return err
	}
	f := rake.TournamentFee(cfg, c.BuyIn)
	fmt.Printf("%s buy-in %.2f + fee %s = %.2f\n",
		headerStyle.Render("Entry:"), f.BuyIn, moneyStyle.Render(fmt.Sprintf("%.2f", f.Fee)), f.TotalCost)
	return nil
}

// RakebackCmd prints the rakeback owed on rake paid
type RakebackCmd struct {
	Paid float64 `arg:"" help:"Rake paid in currency"`
	Tier int     `short:"t" default:"0" help:"Loyalty tier"`
}

func (c *RakebackCmd) Run(cli *CLI) error {
	cfg, err := houseConfig(cli)
	if err != nil {
		return err
	}
	back, err := rake.Rakeback(cfg, c.Paid, c.Tier)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s at tier %d\n", headerStyle.Render("Rakeback:"), moneyStyle.Render(fmt.Sprintf("%.2f", back)), c.Tier)
	return nil
}

func houseConfig(cli *CLI) (rake.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return rake.Config{}, err
	}
	rc := cfg.RakeConfig()
	return rc, rc.Validate()
}
