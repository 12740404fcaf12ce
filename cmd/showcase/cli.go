package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/showcase/internal/auth"
	"github.com/hpungsan/showcase/internal/config"
	"github.com/hpungsan/showcase/internal/errors"
	"github.com/hpungsan/showcase/internal/journal"
	"github.com/hpungsan/showcase/internal/logger"
	"github.com/hpungsan/showcase/internal/mcp"
	"github.com/hpungsan/showcase/internal/ops"
	"github.com/hpungsan/showcase/internal/projector"
	"github.com/hpungsan/showcase/internal/store"
	"github.com/hpungsan/showcase/internal/telemetry"
	"github.com/hpungsan/showcase/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "showcase",
		Usage:   "Creative-coding sketch gallery",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				EnvVars: []string{"SHOWCASE_DATA_DIR"},
				Usage:   "Directory holding the record files, snapshot and journal",
			},
			&cli.StringFlag{
				Name:    "config-dir",
				EnvVars: []string{"SHOWCASE_CONFIG_DIR"},
				Value:   ".",
				Usage:   "Directory searched for config.yaml, config.json and .env",
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			regenerateCmd(),
			checkCmd(),
			historyCmd(),
			mcpCmd(),
		},
	}
	// Errors are returned to main instead of exiting inside Run.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// deps is the wiring shared by every command.
type deps struct {
	cfg     *config.Config
	logger  *zap.Logger
	journal *journal.Journal
	svc     *ops.Service
}

// openDeps resolves configuration and opens the data directory.
func openDeps(c *cli.Context, opts ...ops.Option) (*deps, error) {
	cfg, err := config.Resolve(c.String("config-dir"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.DataDir = dir
	}

	log, err := logger.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	j, err := journal.Open(cfg.DataDir)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	proj := projector.New(filepath.Join(cfg.DataDir, projector.FileName))
	var storeOpts []store.Option
	if legacy := cfg.LegacyArtifactPath(); legacy != "" {
		storeOpts = append(storeOpts, store.WithLegacyArtifact(legacy))
	}
	st := store.New(cfg.DataDir, proj, log, storeOpts...)
	opts = append([]ops.Option{ops.WithHistory(j), ops.WithLogger(log)}, opts...)

	return &deps{
		cfg:     cfg,
		logger:  log,
		journal: j,
		svc:     ops.New(st, proj, opts...),
	}, nil
}

func (d *deps) Close() {
	if err := d.journal.Close(); err != nil {
		d.logger.Warn("failed to close journal", zap.Error(err))
	}
	_ = d.logger.Sync()
}

// serveCmd creates the serve command.
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the gallery HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			var tel *telemetry.Telemetry
			hook := ops.WithMutationHook(func(ctx context.Context, action journal.Action) {
				if tel != nil {
					tel.RecordMutation(ctx, string(action))
				}
			})

			d, err := openDeps(c, hook)
			if err != nil {
				return outputError(err)
			}
			defer d.Close()

			tel, err = telemetry.NewTelemetry(d.logger)
			if err != nil {
				return outputError(err)
			}
			defer func() {
				if err := tel.Shutdown(context.Background()); err != nil {
					d.logger.Warn("failed to shut down telemetry", zap.Error(err))
				}
			}()

			if _, err := d.svc.Regenerate(); err != nil {
				return outputError(err)
			}

			addr := d.cfg.Addr
			if a := c.String("addr"); a != "" {
				addr = a
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			lockout := auth.NewLockout(d.cfg.LockoutAttempts, d.cfg.LockoutWindow())
			go lockout.RunSweeper(ctx)

			srv := web.NewServer(addr, web.New(web.Options{
				Service:   d.svc,
				Config:    d.cfg,
				Logger:    d.logger,
				Telemetry: tel,
				Lockout:   lockout,
			}))
			return web.Run(ctx, srv, d.logger)
		},
	}
}

// regenerateCmd creates the regenerate command.
func regenerateCmd() *cli.Command {
	return &cli.Command{
		Name:  "regenerate",
		Usage: "Rewrite the gallery snapshot from the record files",
		Action: func(c *cli.Context) error {
			d, err := openDeps(c)
			if err != nil {
				return outputError(err)
			}
			defer d.Close()

			output, err := d.svc.Regenerate()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// checkCmd creates the check command. It exits 1 when issues are found.
func checkCmd() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report records that break gallery invariants",
		Action: func(c *cli.Context) error {
			d, err := openDeps(c)
			if err != nil {
				return outputError(err)
			}
			defer d.Close()

			output, err := d.svc.Check()
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(c.App.Writer, output); err != nil {
				return err
			}
			if !output.OK {
				return cli.Exit(fmt.Sprintf("%d issue(s) found", len(output.Issues)), 1)
			}
			return nil
		},
	}
}

// historyCmd creates the history command.
func historyCmd() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Print recent gallery mutations, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: journal.DefaultLimit, Usage: "Maximum entries to print"},
		},
		Action: func(c *cli.Context) error {
			if c.Int("limit") < 1 {
				return outputError(errors.NewInvalidRequest("limit must be a positive integer"))
			}

			d, err := openDeps(c)
			if err != nil {
				return outputError(err)
			}
			defer d.Close()

			output, err := d.svc.History(c.Context, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve read-only gallery tools over MCP stdio",
		Action: func(c *cli.Context) error {
			d, err := openDeps(c)
			if err != nil {
				return outputError(err)
			}
			defer d.Close()

			if err := mcp.Run(d.svc, Version); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the terminal.
func outputError(err error) error {
	if sErr, ok := err.(*errors.ShowcaseError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
