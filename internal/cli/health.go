package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	mcpadapter "github.com/kirillkom/scc-caselaw-rag/internal/adapters/mcp"
)

func cmdHealth(e *env) *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check the vector index and model providers",
		Action: func(ctx context.Context, c *cli.Command) error {
			app, err := e.openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			report := app.Health.Check(ctx)
			enc := json.NewEncoder(e.stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("encode health report: %w", err)
			}
			if !report.Healthy() {
				return fmt.Errorf("engine is %s", report.Status)
			}
			return nil
		},
	}
}

func cmdMCP(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the case-law tools over MCP stdio",
		Action: func(ctx context.Context, c *cli.Command) error {
			app, err := e.openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			app.WatchSnapshots(ctx)

			return mcpadapter.New(app.QueryEngine("mcp"), app.Cases, e.cfg.RAGTopK).ServeStdio()
		},
	}
}
