package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/spf13/afero"

	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/config"
	"github.com/ilpvfx/spk/solve"
	"github.com/ilpvfx/spk/storage"
)

type resolveCommand struct {
	extraRepo string
}

func (c *resolveCommand) Name() string      { return "resolve" }
func (c *resolveCommand) Args() string      { return "<request> [request...]" }
func (c *resolveCommand) ShortHelp() string { return "Resolve a set of package requests to a solution" }

func (c *resolveCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.extraRepo, "repo", "", "additional repository path to consult, name=path")
}

func (c *resolveCommand) Run(cfg config.Config, out, errOut *log.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("resolve: at least one package request is required")
	}

	repos, err := openRepositories(cfg, c.extraRepo)
	if err != nil {
		return err
	}

	s := solve.NewSolver(api.HostOptions())
	for _, r := range repos {
		s.AddRepository(r)
	}
	for _, arg := range args {
		req, err := api.ParseRequest(arg)
		if err != nil {
			return fmt.Errorf("resolve: %w", err)
		}
		s.AddRequest(req)
	}

	sol, err := s.Solve()
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	for _, name := range sol.Names() {
		entry, _ := sol.Get(name)
		out.Printf("%s  (via %s)\n", entry.Spec.Pkg, entry.Repo)
	}
	return nil
}

// openRepositories builds the repository list from cfg.Repos plus an
// optional "name=path" extra repo flag, all backed by the real OS
// filesystem.
func openRepositories(cfg config.Config, extra string) ([]storage.Repository, error) {
	fs := afero.NewOsFs()
	var repos []storage.Repository

	for _, rc := range cfg.Repos {
		r, err := storage.NewLocalRepository(rc.Name, fs, rc.Path)
		if err != nil {
			return nil, fmt.Errorf("open repository %s: %w", rc.Name, err)
		}
		repos = append(repos, r)
	}

	if extra != "" {
		name, path, ok := splitNameEqualsPath(extra)
		if !ok {
			return nil, fmt.Errorf("invalid -repo value %q, expected name=path", extra)
		}
		r, err := storage.NewLocalRepository(name, fs, path)
		if err != nil {
			return nil, fmt.Errorf("open repository %s: %w", name, err)
		}
		repos = append(repos, r)
	}

	return repos, nil
}

func splitNameEqualsPath(s string) (name, path string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
