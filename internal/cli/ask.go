package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
)

type outputOptions struct {
	JSON          bool
	WithCitations bool
}

func cmdAsk(e *env) *cli.Command {
	var (
		topK int
		out  outputOptions
	)
	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer one question from the active snapshot",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "top-k",
				Aliases:     []string{"k"},
				Usage:       "Number of passages to retrieve (0 uses RAG_TOP_K)",
				Destination: &topK,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "Print the full result as JSON",
				Destination: &out.JSON,
			},
			&cli.BoolFlag{
				Name:        "with-citations",
				Usage:       "Append a Sources section listing cited cases",
				Destination: &out.WithCitations,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return errors.New("ask: a question is required")
			}
			app, err := e.openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if topK <= 0 {
				topK = e.cfg.RAGTopK
			}
			result, answerErr := app.QueryEngine("cli").Answer(ctx, question, topK)
			if err := writeResult(e.stdout, result, out); err != nil {
				return err
			}
			return answerErr
		},
	}
}

func writeResult(w io.Writer, result domain.QueryResult, opts outputOptions) error {
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		return nil
	}
	_, err := io.WriteString(w, formatResult(result, opts.WithCitations)+"\n")
	return err
}

func formatResult(result domain.QueryResult, withCitations bool) string {
	answer := result.Answer
	if withCitations {
		answer += formatSources(result.Citations)
	}
	if result.Error != "" {
		return fmt.Sprintf("Error: %s\n\n%s", result.Error, answer)
	}
	return fmt.Sprintf("%s\n\n(Retrieved in %.2fs, total time: %.2fs)", answer, result.RetrievalTime, result.TotalTime)
}

func formatSources(citations []domain.Citation) string {
	if len(citations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nSources:\n")
	for i, c := range citations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.CitationText)
	}
	return strings.TrimRight(b.String(), "\n")
}
