// Command networthctl manages net-worth entries from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"networth/internal/cli"
	"networth/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cli.SetupLogger(os.Stderr, log.ComponentCLI)
	cli.SetLogLevel("warn")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&addCmd{}, "entries")
	commander.Register(&editCmd{}, "entries")
	commander.Register(&rmCmd{}, "entries")
	commander.Register(&showCmd{}, "entries")
	commander.Register(&listCmd{}, "entries")
	commander.Register(&clearCmd{}, "entries")

	commander.Register(&importCmd{}, "files")
	commander.Register(&exportCmd{}, "files")

	commander.Register(&reportCmd{}, "reports")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
