package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ilpvfx/spk/config"
)

// command is the interface every spk subcommand implements: a name, its
// flags, and a Run method. No framework, just a flat dispatch table.
type command interface {
	Name() string
	Args() string
	ShortHelp() string
	Register(*flag.FlagSet)
	Run(cfg config.Config, out, errOut *log.Logger, args []string) error
}

func commands() []command {
	return []command{
		&resolveCommand{},
		&buildCommand{},
		&repoCommand{},
	}
}

func usage(errOut *log.Logger, cmds []command) {
	errOut.Println("spk resolves and builds packages against a set of repositories")
	errOut.Println()
	errOut.Println("Usage: spk <command> [flags] [args]")
	errOut.Println()
	errOut.Println("Commands:")
	errOut.Println()
	w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
	for _, c := range cmds {
		fmt.Fprintf(w, "\t%s\t%s\n", c.Name(), c.ShortHelp())
	}
	w.Flush()
	errOut.Println()
	errOut.Println("Use \"spk <command> -h\" for a command's flags.")
}

func resetUsage(errOut *log.Logger, fs *flag.FlagSet, name, args string) {
	fs.Usage = func() {
		errOut.Printf("Usage: spk %s %s\n", name, args)
		fs.PrintDefaults()
	}
}

func run(args []string, out, errOut *log.Logger) int {
	cmds := commands()

	if len(args) < 2 || strings.EqualFold(args[1], "help") || strings.EqualFold(args[1], "-h") {
		usage(errOut, cmds)
		return 1
	}

	name := args[1]
	for _, c := range cmds {
		if c.Name() != name {
			continue
		}

		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		c.Register(fs)
		resetUsage(errOut, fs, name, c.Args())

		if err := fs.Parse(args[2:]); err != nil {
			return 1
		}

		cfg, err := config.Load()
		if err != nil {
			errOut.Printf("load config: %v\n", err)
			return 1
		}

		if err := c.Run(cfg, out, errOut, fs.Args()); err != nil {
			errOut.Printf("%v\n", err)
			return 1
		}
		return 0
	}

	errOut.Printf("spk: %s: no such command\n", name)
	usage(errOut, cmds)
	return 1
}
