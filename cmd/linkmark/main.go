package main

import (
	"fmt"
	"os"

	"github.com/dastanaron/linkmark/internal/commands"
	"github.com/dastanaron/linkmark/internal/config"
	"github.com/dastanaron/linkmark/internal/logger"
	"github.com/dastanaron/linkmark/internal/models"
	"github.com/dastanaron/linkmark/internal/repository"
	"github.com/dastanaron/linkmark/internal/scraper"
	"github.com/dastanaron/linkmark/internal/service"
	"github.com/dastanaron/linkmark/internal/ui"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:    "linkmark",
		Usage:   "A terminal organizer for your links",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Data directory (default: ~/.linkmark)",
				EnvVars: []string{"LINKMARK_DATA"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "Profile to operate on (default: the default profile)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import links from a bookmarks HTML file",
				ArgsUsage: "<bookmarks.html>",
				Action:    runImport,
			},
			{
				Name:      "import-firefox",
				Usage:     "Import bookmarks from a Firefox places.sqlite",
				ArgsUsage: "<places.sqlite>",
				Action:    runImportFirefox,
			},
			{
				Name:      "export",
				Usage:     "Export links to a bookmarks HTML file",
				ArgsUsage: "<bookmarks.html>",
				Action:    runExport,
			},
			{
				Name:   "dedupe",
				Usage:  "Remove duplicate links (same URL)",
				Action: runDedupe,
			},
			{
				Name:   "fetch-titles",
				Usage:  "Fetch page titles for links named after their URL",
				Action: runFetchTitles,
			},
		},
		Action: runUI,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env bundles everything the actions need after bootstrap.
type env struct {
	cfg      *config.Config
	log      *zap.Logger
	profiles *service.ProfileService
	factory  ui.LinkServiceFactory
}

func setup(c *cli.Context) (*env, error) {
	cfgPath := c.String("config")
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if dir := c.String("data"); dir != "" {
		cfg.WithDataDir(dir)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	log, err := logger.New(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	profileRepo := repository.NewJSONProfileRepository(cfg.ProfilesPath())
	profiles, err := service.NewProfileService(profileRepo, cfg.DataDir, log, nil)
	if err != nil {
		return nil, err
	}

	browser := &service.SystemBrowser{Command: cfg.Browser}
	factory := func(p models.Profile) (*service.LinkService, error) {
		repo := repository.NewJSONLinkRepository(profiles.LinksPath(p))
		return service.NewLinkService(repo, browser, log)
	}

	return &env{cfg: cfg, log: log, profiles: profiles, factory: factory}, nil
}

func (e *env) close() {
	_ = e.log.Sync()
}

// linkService resolves the profile named on the command line, or the
// default one, and opens its link collection.
func (e *env) linkService(c *cli.Context) (*service.LinkService, error) {
	if name := c.String("profile"); name != "" {
		if err := e.profiles.Switch(name); err != nil {
			return nil, err
		}
	}
	return e.factory(e.profiles.Current())
}

func runUI(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	if name := c.String("profile"); name != "" {
		if err := e.profiles.Switch(name); err != nil {
			return err
		}
	}

	app, err := ui.NewApp(e.profiles, e.factory)
	if err != nil {
		return err
	}
	return app.Run()
}

func runImport(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: linkmark import <bookmarks.html>", 2)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	svc, err := e.linkService(c)
	if err != nil {
		return err
	}
	return commands.NewImportCommand(svc).Execute(c.Args().Get(0))
}

func runImportFirefox(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: linkmark import-firefox <places.sqlite>", 2)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	svc, err := e.linkService(c)
	if err != nil {
		return err
	}
	return commands.NewImportFirefoxCommand(svc).Execute(c.Args().Get(0))
}

func runExport(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: linkmark export <bookmarks.html>", 2)
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	svc, err := e.linkService(c)
	if err != nil {
		return err
	}
	return commands.NewExportCommand(svc).Execute(c.Args().Get(0))
}

func runDedupe(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	svc, err := e.linkService(c)
	if err != nil {
		return err
	}
	return commands.NewDedupeCommand(svc).Execute()
}

func runFetchTitles(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	svc, err := e.linkService(c)
	if err != nil {
		return err
	}
	return commands.NewFetchTitlesCommand(svc, scraper.New()).Execute()
}
