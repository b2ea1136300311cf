package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Config   string           `short:"c" default:"cardroom.hcl" type:"path" help:"Path to HCL configuration file"`
	Serve    ServeCmd         `cmd:"" help:"Run the cardroom server"`
	Simulate SimulateCmd      `cmd:"" help:"Play CPU-only tables and report the house take"`
	Watch    WatchCmd         `cmd:"" help:"Follow settled hands published to NATS"`
	Report   ReportCmd        `cmd:"" help:"Revenue report from stored settlements"`
	Rake     RakeCmd          `cmd:"" help:"Rake for a cash pot"`
	Fee      FeeCmd           `cmd:"" help:"Tournament entry fee for a buy-in"`
	Rakeback RakebackCmd      `cmd:"" help:"Rakeback owed for a loyalty tier"`
	Odds     OddsCmd          `cmd:"" help:"Estimate hand equities"`
	History  HistoryCmd       `cmd:"" help:"Export stored hands as PHH"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cardroom"),
		kong.Description("Texas Hold'em cardroom server with rake accounting"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
