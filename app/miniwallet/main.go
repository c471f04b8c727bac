package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	local := []*cli.Command{
		DaemonCmd,
	}

	app := &cli.App{
		Name:                 "miniwallet",
		Usage:                "Leviar wallet daemon bridging a front-end over sentinel files",
		Version:              "1.0.0",
		EnableBashCompletion: true,
		Commands:             local,
	}

	app.Setup()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err) // nolint:errcheck
		os.Exit(1)
	}
}
