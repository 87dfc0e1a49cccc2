package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/uidmgr/internal/debug"
	"github.com/standardbeagle/uidmgr/internal/version"
)

func newApp() *cli.App {
	return &cli.App{
		Name:                   "uidmgr",
		Usage:                  "Intern and dereference code model entity handles",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml); defaults to .uidmgr.kdl or .uidmgr.toml in the working directory",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite repository path (overrides config and selects the sqlite driver)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Write debug output to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				debug.EnableDebug = "true"
				debug.SetDebugOutput(c.App.ErrWriter)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			{
				Name:      "decode",
				Usage:     "Print the fields of a key",
				ArgsUsage: "<key>",
				Action:    decodeCommand,
			},
			{
				Name:  "put",
				Usage: "Store an entity record",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "unit", Aliases: []string{"u"}, Usage: "Project unit (partition)"},
					&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Entity kind", Value: "function"},
					&cli.UintFlag{Name: "file", Aliases: []string{"f"}, Usage: "File index"},
					&cli.UintFlag{Name: "start", Usage: "Start offset"},
					&cli.UintFlag{Name: "end", Usage: "End offset"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Entity name", Required: true},
					&cli.StringFlag{Name: "text", Usage: "Entity text"},
				},
				Action: putCommand,
			},
			{
				Name:      "get",
				Usage:     "Resolve a key to its stored entity",
				ArgsUsage: "<key>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
				},
				Action: getCommand,
			},
			{
				Name:      "drop",
				Usage:     "Drop every entity of a unit",
				ArgsUsage: "<unit>",
				Action:    dropCommand,
			},
			{
				Name:  "bench",
				Usage: "Intern keys concurrently and check canonical uniqueness",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Concurrent workers", Value: 8},
					&cli.IntFlag{Name: "keys", Usage: "Distinct keys per round", Value: 10000},
					&cli.IntFlag{Name: "rounds", Usage: "Rounds per worker", Value: 4},
				},
				Action: benchCommand,
			},
			{
				Name:   "watch",
				Usage:  "Clear cached entities when partition index files change",
				Action: watchCommand,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.FullInfo())
					return nil
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		debug.FatalAndExit("%v", err)
	}
}
