package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "chainmonitor",
		Usage: "Track the tip of many blockchains across public explorers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Usage:   "Load environment variables from this file before reading flags",
				EnvVars: []string{"ENV_FILE"},
			},
		},
		// Runs before subcommand flags are parsed, so the file feeds their EnvVars.
		Before: func(c *cli.Context) error {
			path := c.String("env-file")
			if path == "" {
				return nil
			}
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("failed to load env file %q: %w", path, err)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Poll sources and serve the aggregated chain states",
				Flags:  runFlags(),
				Action: run,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
