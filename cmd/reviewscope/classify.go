package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spacesedan/reviewscope/internal/api"
	"github.com/spacesedan/reviewscope/internal/clients"
	"github.com/spacesedan/reviewscope/internal/models"
	"github.com/spacesedan/reviewscope/internal/reporting"
)

const (
	FORMAT_PRETTY = "pretty"
	FORMAT_JSON   = "json"

	previewRunes = 60
)

var classifyCmd = &cobra.Command{
	Use:   "classify FILE",
	Short: "Classify the reviews in a JSON file",
	Long: `Classify reads a JSON array of {"Review_Text", "Rating"} objects, or a
{"reviews": [...]} request body, and prints the product verdict.

The reviews are scored with the local artifacts unless --remote points at a
running server.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().String("remote", "", "base URL of a running reviewscope server")
	classifyCmd.Flags().String("format", FORMAT_PRETTY, "output format (pretty|json)")
	classifyCmd.Flags().Bool("details", false, "include per-review labels and sentiment")
	classifyCmd.Flags().Duration("timeout", clients.DEFAULT_CLIENT_TIMEOUT, "HTTP timeout for --remote")
}

func runClassify(cmd *cobra.Command, args []string) error {
	remote, _ := cmd.Flags().GetString("remote")
	format, _ := cmd.Flags().GetString("format")
	details, _ := cmd.Flags().GetBool("details")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if format != FORMAT_PRETTY && format != FORMAT_JSON {
		return fmt.Errorf("unknown format %q", format)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	reviews, err := api.DecodeReviewFile(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ctx := cmd.Context()
	var (
		analysis *models.Analysis
		id       string
	)
	if remote != "" {
		analysis, id, err = clients.NewAnalyzerClient(remote, timeout).Analyze(ctx, reviews, details)
	} else {
		analysis, id, err = classifyLocal(ctx, reviews, details)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == FORMAT_JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}
	printAnalysis(out, id, reviews, analysis)
	return nil
}

func classifyLocal(ctx context.Context, reviews []models.Review, details bool) (*models.Analysis, string, error) {
	det, err := loadDetector(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	analysis, err := det.Analyze(ctx, reviews, details)
	if err != nil {
		return nil, "", err
	}
	id := uuid.NewString()

	recorders, err := buildRecorders(ctx, cfg.Recording)
	if err != nil {
		slog.Warn("[Classify] Recording disabled", slog.String("error", err.Error()))
		return analysis, id, nil
	}
	defer recorders.Close()

	if recorders.Len() > 0 {
		recordCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rec := reporting.NewRecord(id, reporting.SOURCE_CLI, det.Info().ModelKind, analysis)
		if err := recorders.Record(recordCtx, rec); err != nil {
			slog.Warn("[Classify] Failed to record analysis", slog.String("error", err.Error()))
		}
	}
	return analysis, id, nil
}

func statusColor(status string) *color.Color {
	if status == models.STATUS_FAKE {
		return color.New(color.FgRed, color.Bold)
	}
	return color.New(color.FgGreen, color.Bold)
}

func printAnalysis(w io.Writer, id string, reviews []models.Review, a *models.Analysis) {
	faint := color.New(color.Faint)

	if id != "" {
		fmt.Fprintf(w, "%s %s\n", faint.Sprint("analysis"), id)
	}
	fmt.Fprintf(w, "Total reviews:   %d\n", a.TotalReviews)
	fmt.Fprintf(w, "Fake reviews:    %d (%.2f%%)\n", a.FakeReviews, a.FakePercentage)
	fmt.Fprintf(w, "Product status:  %s\n", statusColor(a.ProductStatus).Sprint(a.ProductStatus))

	if len(a.Reviews) == 0 {
		return
	}

	fmt.Fprintln(w)
	warn := color.New(color.FgYellow)
	for _, d := range a.Reviews {
		label := color.New(color.FgGreen).Sprintf("%-7s", d.Label)
		if d.Prediction == models.LABEL_FAKE {
			label = color.New(color.FgRed).Sprintf("%-7s", d.Label)
		}

		text := ""
		if d.Index >= 0 && d.Index < len(reviews) {
			text = preview(reviews[d.Index].ReviewText)
		}

		line := fmt.Sprintf("#%-3d %s rating=%-4v %-8s %+.3f  %s",
			d.Index+1, label, d.Rating, d.SentimentLabel, d.SentimentScore, faint.Sprint(text))
		if d.RatingMismatch {
			line += " " + warn.Sprint("(rating mismatch)")
		}
		fmt.Fprintln(w, line)
	}
}

// preview shortens text to one line of at most previewRunes runes.
func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes-1]) + "…"
}
