package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/kirillkom/scc-caselaw-rag/internal/bootstrap"
	"github.com/kirillkom/scc-caselaw-rag/internal/config"
	"github.com/kirillkom/scc-caselaw-rag/internal/observability/logging"
)

const serviceName = "caselaw-cli"

// env carries what every subcommand needs after Before has run.
type env struct {
	cfg    config.Config
	stdout io.Writer
}

// openApp wires the engine and activates the current snapshot the same way
// the API does: only an embedding mismatch is fatal.
func (e *env) openApp(ctx context.Context) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, e.cfg, serviceName)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if err := app.ActivateSnapshot(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func Run(ctx context.Context, args []string) error {
	e := &env{stdout: os.Stdout}
	var (
		logLevel  string
		logFormat string
	)

	app := &cli.Command{
		Name:  "caselaw",
		Usage: "Ask questions about Supreme Court of Canada criminal case law",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("LOG_LEVEL"),
				Value:       "warn",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (text, json)",
				Sources:     cli.EnvVars("LOG_FORMAT"),
				Value:       "text",
				Destination: &logFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.Load()
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			cfg.LogLevel = logLevel
			e.cfg = cfg
			slog.SetDefault(logging.New(os.Stderr, serviceName, logLevel, logFormat))
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdAsk(e),
			cmdHealth(e),
			cmdMCP(e),
			cmdBatch(e),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		slog.Error("command_failed", "error", err)
		return err
	}
	return nil
}
