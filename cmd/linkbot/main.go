// Command linkbot runs the link catalog bot.
//
//	linkbot --config ./config.yaml            # run (default)
//	linkbot migrate                           # create or upgrade the database
//	linkbot seed --file categories.yaml       # add starter categories
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"linkbot/internal/app"
	"linkbot/internal/catalog"
	"linkbot/internal/config"
	logx "linkbot/pkg/logx"
)

var version = "dev"

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "linkbot",
		Usage:   "Telegram bot for a moderated link catalog",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.yaml or config.json",
				Value:   "./config.yaml",
				Sources: cli.EnvVars("LINKBOT_CONFIG"),
			},
			&cli.StringSliceFlag{
				Name:  "env",
				Usage: ".env files loaded before the config",
				Value: []string{".env"},
			},
		},
		Action: runBot,
		Commands: []*cli.Command{
			{Name: "run", Usage: "start the bot (default)", Action: runBot},
			{Name: "migrate", Usage: "create or upgrade the catalog database and exit", Action: runMigrate},
			{
				Name:  "seed",
				Usage: "add categories from a YAML file; existing names are skipped",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "categories YAML", Required: true},
				},
				Action: runSeed,
			},
		},
	}
}

func runBot(ctx context.Context, cmd *cli.Command) error {
	a, err := app.New(ctx, app.Options{
		ConfigPath: cmd.String("config"),
		EnvFiles:   cmd.StringSlice("env"),
		Version:    version,
	})
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := a.Start(ctx); err != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(sctx, app.StopFatalError)
		return err
	}

	reason := app.StopUnknown
	select {
	case sig := <-sigs:
		reason = app.ReasonForSignal(sig)
	case <-a.Done():
		reason = app.StopFatalError
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Stop(sctx, reason)
	if reason == app.StopFatalError {
		if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// openCatalog loads the config (the bot token is not needed) and opens the
// catalog it points at.
func openCatalog(ctx context.Context, cmd *cli.Command, log logx.Logger) (*catalog.Store, error) {
	if err := config.LoadEnv(cmd.StringSlice("env")...); err != nil {
		return nil, err
	}
	m := config.NewManager(cmd.String("config"))
	m.SetValidator(func(_ context.Context, c *config.Config) error { return config.Validate(c) })
	cfg, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	path := cfg.Storage.Path
	if path == "" {
		path = config.DefaultStoragePath
	}
	return catalog.Open(ctx, catalog.Config{
		Path:        path,
		BusyTimeout: config.DurationOr(cfg.Storage.BusyTimeout, config.DefaultBusyTimeout),
	}, log)
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	log := logx.NewConsole("INFO").With(logx.String("comp", "migrate"))
	st, err := openCatalog(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info("catalog schema is up to date")
	return nil
}

func runSeed(ctx context.Context, cmd *cli.Command) error {
	log := logx.NewConsole("INFO").With(logx.String("comp", "seed"))
	seeds, err := loadSeed(cmd.String("file"))
	if err != nil {
		return err
	}
	st, err := openCatalog(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer st.Close()

	added, skipped, err := seed(ctx, st, seeds)
	log.Info("seed finished", logx.Int("added", added), logx.Int("skipped", skipped))
	return err
}
