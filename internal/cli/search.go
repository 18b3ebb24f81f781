package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rohmanhakim/pyq-crawler/internal/cachestore"
	"github.com/rohmanhakim/pyq-crawler/internal/config"
	"github.com/rohmanhakim/pyq-crawler/internal/mdconvert"
	"github.com/rohmanhakim/pyq-crawler/internal/metadata"
	"github.com/rohmanhakim/pyq-crawler/internal/progress"
	"github.com/rohmanhakim/pyq-crawler/internal/report"
	"github.com/rohmanhakim/pyq-crawler/internal/scheduler"
	"github.com/rohmanhakim/pyq-crawler/internal/storage"
	"github.com/spf13/cobra"
)

var (
	subject        string
	keyword        string
	cacheKey       string
	reportMarkdown string
	reportHTML     string
	metricsFile    string
	noProgress     bool
)

var summaryStyle = lipgloss.NewStyle().Bold(true)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find questions of a subject whose text contains a keyword.",
	Example: `  pyq-crawler search --subject "Physics (Mains)" --keyword "projectile"
  pyq-crawler search --subject 615f0c729476412f48314dab --keyword torque --report-md torque.md`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&subject, "subject", "", "subject name or id (see `pyq-crawler subjects`)")
	searchCmd.Flags().StringVar(&keyword, "keyword", "", "text to look for, case-insensitive")
	searchCmd.Flags().StringVar(&cacheKey, "cache-key", "", "cache key of the chapter listing (required for subjects outside the catalog)")
	searchCmd.Flags().StringVar(&outputDir, "output-dir", "", "directory receiving one JSON file per matching chapter")
	searchCmd.Flags().BoolVar(&cleanOutput, "clean-output", false, "empty the output directory before searching")
	searchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of chapters processed at once")
	searchCmd.Flags().DurationVar(&timeout, "timeout", 0, "timeout for one HTTP attempt")
	searchCmd.Flags().DurationVar(&autosave, "autosave", 0, "interval of the background cache flush")
	searchCmd.Flags().StringVar(&reportMarkdown, "report-md", "", "also write a Markdown report to this file")
	searchCmd.Flags().StringVar(&reportHTML, "report-html", "", "also write an HTML report to this file")
	searchCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format after the run")
	searchCmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not draw the progress bar")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}

	selected, err := resolveSubject(cfg, subject, cacheKey)
	if err != nil {
		return err
	}
	param := scheduler.SearchParam{
		SubjectID:       selected.ID,
		Keyword:         keyword,
		ChapterCacheKey: selected.ChapterCacheKey,
	}

	logger := metadata.NewLogger(cfg.LogLevel(), errOut, isTerminal(errOut))
	recorder := metadata.NewRecorder(logger)

	store := cachestore.NewStore(cachestore.NewPaths(cfg.CacheFile()), cfg.LockTimeout(), recorder)
	_, source := store.Load()
	logger.Debug().
		Str("path", cfg.CacheFile()).
		Str("source", source.String()).
		Int("entries", store.Len()).
		Msg("cache loaded")

	if cfg.CleanOutput() {
		if err := storage.NewLocalSink(recorder).Clean(cfg.OutputDir()); err != nil {
			return err
		}
	}

	autosaveCtx, stopAutosave := context.WithCancel(ctx)
	autosaveDone := make(chan error, 1)
	go func() {
		autosaveDone <- store.AutoPersist(autosaveCtx, cfg.AutosaveInterval())
	}()

	reporter, finishProgress := newProgressReporter(errOut, selected.Name)
	execution, searchErr := scheduler.NewScheduler(cfg, recorder, store).Search(ctx, param, reporter)
	finishProgress()

	stopAutosave()
	if err := <-autosaveDone; err != nil {
		logger.Warn().Err(err).Msg("final cache flush failed")
	}
	if searchErr != nil {
		return searchErr
	}
	if execution.Outcome == scheduler.OutcomeCancelled && execution.TotalChapters == 0 {
		return fmt.Errorf("search cancelled before chapters were listed: %w", context.Cause(ctx))
	}
	if execution.Outcome == scheduler.OutcomeNoChapters {
		logger.Warn().
			Str("subject_id", param.SubjectID).
			Str("cache_key", param.ChapterCacheKey).
			Msg("no chapters found")
	}

	r := report.New(selected.Name, param, execution, cfg.QuestionLinkBaseURL(), time.Now())
	if _, err := report.NewTextWriter(out).Write(r); err != nil {
		return err
	}

	rule := mdconvert.NewRule(recorder)
	for _, target := range []struct {
		path   string
		format report.Format
	}{
		{reportMarkdown, report.FormatMarkdown},
		{reportHTML, report.FormatHTML},
	} {
		if target.path == "" {
			continue
		}
		if err := report.SaveFile(recorder, target.path, target.format, r, rule); err != nil {
			return err
		}
	}

	if metricsFile != "" {
		if err := recorder.Metrics().WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	fmt.Fprintln(errOut, summaryStyle.Render(fmt.Sprintf(
		"%d matching of %d questions in %d chapters, %d errors (%s)",
		len(execution.Matches),
		execution.TotalQuestions,
		execution.TotalChapters,
		execution.TotalErrors,
		execution.Duration.Round(time.Millisecond),
	)))

	if execution.Outcome == scheduler.OutcomeCancelled {
		return context.Cause(ctx)
	}
	return nil
}

// resolveSubject looks query up in the catalog. A subject outside the catalog
// is accepted as a raw id only when its chapter cache key is given.
func resolveSubject(cfg config.Config, query string, key string) (config.Subject, error) {
	if query == "" {
		return config.Subject{}, errors.New("--subject is required")
	}
	found, err := cfg.ResolveSubject(query)
	if err != nil {
		if key == "" {
			return config.Subject{}, err
		}
		return config.Subject{ID: query, ChapterCacheKey: key}, nil
	}
	if key != "" {
		found.ChapterCacheKey = key
	}
	return found, nil
}

func newProgressReporter(errOut io.Writer, label string) (progress.Reporter, func()) {
	if noProgress || !isTerminal(errOut) {
		return progress.Noop{}, func() {}
	}
	if label == "" {
		label = "Searching"
	}
	bar := progress.NewBar(errOut, label)
	return bar, bar.Finish
}
