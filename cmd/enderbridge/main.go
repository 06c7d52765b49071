package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/VincentDePincent/EnderV3KE-integration/internal/cli"
)

func main() {
	var c cli.CLI

	ctx := kong.Parse(&c,
		kong.Name("enderbridge"),
		kong.Description("Bridge Ender V3 KE printer telemetry to MQTT with snapshot mirroring"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
	)

	if err := ctx.Run(&c.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "enderbridge: %v\n", err)
		os.Exit(1)
	}
}
