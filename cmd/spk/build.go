package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/build"
	"github.com/ilpvfx/spk/config"
	"github.com/ilpvfx/spk/exec"
	"github.com/ilpvfx/spk/storage"
)

// assignments collects repeated "-o name=value" flags into an OptionMap.
type assignments struct {
	opts api.OptionMap
}

func (a *assignments) String() string { return "" }

func (a *assignments) Set(s string) error {
	i := strings.IndexByte(s, '=')
	if i < 0 {
		return fmt.Errorf("invalid option %q, expected name=value", s)
	}
	name, err := api.ParseName(s[:i])
	if err != nil {
		return err
	}
	a.opts.Set(name, s[i+1:])
	return nil
}

type buildCommand struct {
	opts       assignments
	sourcePath string
	extraRepo  string
}

func (c *buildCommand) Name() string      { return "build" }
func (c *buildCommand) Args() string      { return "<spec.toml>" }
func (c *buildCommand) ShortHelp() string { return "Build a package from its spec file" }

func (c *buildCommand) Register(fs *flag.FlagSet) {
	c.opts.opts = api.NewOptionMap()
	fs.Var(&c.opts, "o", "build option assignment name=value, repeatable")
	fs.StringVar(&c.sourcePath, "source", ".", "source directory the build script runs against")
	fs.StringVar(&c.extraRepo, "repo", "", "additional repository path to consult, name=path")
}

func (c *buildCommand) Run(cfg config.Config, out, errOut *log.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("build: exactly one spec file is required")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	spec, err := storage.UnmarshalSpecTOML(data)
	if err != nil {
		return fmt.Errorf("build: parse %s: %w", args[0], err)
	}

	repos, err := openRepositories(cfg, c.extraRepo)
	if err != nil {
		return err
	}

	localRepo, err := storage.NewLocalRepository("local", afero.NewOsFs(), cfg.LocalRepoPath)
	if err != nil {
		return fmt.Errorf("build: open local repository: %w", err)
	}

	b := build.NewBuilder(spec).
		WithOptions(c.opts.opts).
		WithSourcePath(c.sourcePath).
		WithRepositories(repos)

	// No real content-addressed overlay filesystem runtime ships with
	// this toolchain; FakeRuntime gives the build pipeline a working,
	// in-memory filesystem to run against until one is wired in.
	runtime := exec.NewFakeRuntime(exec.Prefix)

	pkg, err := b.Build(context.Background(), runtime, localRepo)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	out.Println(pkg)
	return nil
}
