package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spf13/afero"

	"github.com/ilpvfx/spk/api"
	"github.com/ilpvfx/spk/config"
	"github.com/ilpvfx/spk/storage"
)

type repoCommand struct {
	force bool
}

func (c *repoCommand) Name() string { return "repo" }
func (c *repoCommand) Args() string { return "<list-versions|list-builds|publish> ..." }
func (c *repoCommand) ShortHelp() string {
	return "Inspect or publish to the local repository"
}

func (c *repoCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "overwrite an existing spec when publishing")
}

func (c *repoCommand) Run(cfg config.Config, out, errOut *log.Logger, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("repo: a subaction is required")
	}

	repo, err := storage.NewLocalRepository("local", afero.NewOsFs(), cfg.LocalRepoPath)
	if err != nil {
		return fmt.Errorf("repo: open local repository: %w", err)
	}

	switch args[0] {
	case "list-versions":
		return repoListVersions(repo, out, args[1:])
	case "list-builds":
		return repoListBuilds(repo, out, args[1:])
	case "publish":
		return repoPublish(repo, c.force, args[1:])
	default:
		return fmt.Errorf("repo: unknown subaction %q", args[0])
	}
}

func repoListVersions(repo storage.Repository, out *log.Logger, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("repo list-versions: a package name is required")
	}
	name, err := api.ParseName(args[0])
	if err != nil {
		return fmt.Errorf("repo list-versions: %w", err)
	}
	versions, err := repo.ListVersions(name)
	if err != nil {
		return fmt.Errorf("repo list-versions: %w", err)
	}
	for _, v := range versions {
		out.Println(v)
	}
	return nil
}

func repoListBuilds(repo storage.Repository, out *log.Logger, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("repo list-builds: a package name and version are required")
	}
	name, err := api.ParseName(args[0])
	if err != nil {
		return fmt.Errorf("repo list-builds: %w", err)
	}
	version, err := api.ParseVersion(args[1])
	if err != nil {
		return fmt.Errorf("repo list-builds: %w", err)
	}
	builds, err := repo.ListBuilds(name, version)
	if err != nil {
		return fmt.Errorf("repo list-builds: %w", err)
	}
	for _, id := range builds {
		out.Println(id)
	}
	return nil
}

func repoPublish(repo storage.Repository, force bool, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("repo publish: exactly one spec file is required")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("repo publish: %w", err)
	}
	spec, err := storage.UnmarshalSpecTOML(data)
	if err != nil {
		return fmt.Errorf("repo publish: parse %s: %w", args[0], err)
	}
	if err := repo.PublishSpec(spec, force); err != nil {
		return fmt.Errorf("repo publish: %w", err)
	}
	return nil
}
