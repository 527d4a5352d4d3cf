package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/scc-caselaw-rag/internal/core/domain"
	"github.com/kirillkom/scc-caselaw-rag/internal/core/ports"
)

const answersSheet = "Answers"

var answerHeader = []any{"question", "answer", "citations", "case_numbers", "retrieval_time", "total_time", "error"}

type batchRow struct {
	Question string
	Result   domain.QueryResult
}

func cmdBatch(e *env) *cli.Command {
	var (
		inPath      string
		outPath     string
		topK        int
		concurrency int
	)
	return &cli.Command{
		Name:  "batch",
		Usage: "Answer every question in the first column of a workbook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "in",
				Usage:       "Input .xlsx with one question per row",
				Required:    true,
				Destination: &inPath,
			},
			&cli.StringFlag{
				Name:        "out",
				Usage:       "Output .xlsx",
				Value:       "answers.xlsx",
				Destination: &outPath,
			},
			&cli.IntFlag{
				Name:        "top-k",
				Usage:       "Number of passages to retrieve (0 uses RAG_TOP_K)",
				Destination: &topK,
			},
			&cli.IntFlag{
				Name:        "concurrency",
				Usage:       "Questions answered in parallel",
				Value:       4,
				Destination: &concurrency,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			in, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			questions, err := readQuestions(in)
			_ = in.Close()
			if err != nil {
				return err
			}
			if len(questions) == 0 {
				return errors.New("batch: input has no questions")
			}

			app, err := e.openApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if topK <= 0 {
				topK = e.cfg.RAGTopK
			}
			rows, err := answerAll(ctx, app.QueryEngine("cli"), questions, topK, concurrency)
			if err != nil {
				return err
			}

			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := writeAnswers(out, rows); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("close output: %w", err)
			}
			slog.Info("batch_completed", "questions", len(rows), "out", outPath)
			return nil
		},
	}
}

// readQuestions takes column A of the first sheet. A leading "question"
// header cell and blank rows are skipped.
func readQuestions(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	questions := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		q := strings.TrimSpace(row[0])
		if q == "" {
			continue
		}
		if i == 0 && strings.EqualFold(q, "question") {
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// answerAll keeps input order. A failed question is recorded in its row and
// does not stop the others; only cancellation aborts the batch.
func answerAll(ctx context.Context, engine ports.QueryEngine, questions []string, topK, concurrency int) ([]batchRow, error) {
	rows := make([]batchRow, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, q := range questions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := engine.Answer(gctx, q, topK)
			if err != nil && result.Error == "" {
				result.Error = err.Error()
			}
			rows[i] = batchRow{Question: q, Result: result}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}
	return rows, nil
}

func writeAnswers(w io.Writer, rows []batchRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), answersSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header := answerHeader
	if err := f.SetSheetRow(answersSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := answerValues(row)
		if err := f.SetSheetRow(answersSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func answerValues(row batchRow) []any {
	citations := make([]string, 0, len(row.Result.Citations))
	caseNumbers := make([]string, 0, len(row.Result.Citations))
	for _, c := range row.Result.Citations {
		citations = append(citations, c.CitationText)
		caseNumbers = append(caseNumbers, c.CaseNumber)
	}
	return []any{
		row.Question,
		row.Result.Answer,
		strings.Join(citations, "; "),
		strings.Join(caseNumbers, ", "),
		row.Result.RetrievalTime,
		row.Result.TotalTime,
		row.Result.Error,
	}
}
