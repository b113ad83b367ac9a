package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"yareviews/internal/worker"
	"yareviews/pkg/browser"
	"yareviews/pkg/config"
	"yareviews/pkg/humanize"
	"yareviews/pkg/logger"
	"yareviews/pkg/metrics"
	"yareviews/pkg/models"
	"yareviews/pkg/ratelimit"
	"yareviews/pkg/session"
	"yareviews/pkg/storage"
	"yareviews/pkg/ui"
)

var (
	// Scrape command flags
	mode          string
	outputDir     string
	workers       int
	maxPerSession int
	headless      bool
	chromePath    string
	rateLimit     int
	timeout       time.Duration
	metricsAddr   string
	noJitter      bool
	skipExisting  bool
	pretty        bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <id>...",
	Short: "Extract the rating block and reviews of one or more organisations",
	Long: `Extract the aggregate rating block and every review of the given Yandex Maps
organisations. Each id is the numeric business id from the organisation URL.

With a single id and no --output, the result is written to stdout as one JSON
document. With several ids it is a JSON object keyed by id. With --output every
result is saved as <output>/<id>.json.

Failures are part of the result, e.g. {"error": "page not found"}.`,
	Example: `  # All data for one organisation
  yareviews scrape 1124715036

  # Only the rating block, in a visible browser
  yareviews scrape 1124715036 --mode info --headless=false

  # A batch on two workers, saving results and skipping the ones already saved
  yareviews scrape 1124715036 203719481912 59171935743 -o ./out --workers 2 --skip-existing`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&mode, "mode", "m", "", "what to extract: all, info or reviews (default all)")
	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory to save one <id>.json per organisation (default: stdout)")
	scrapeCmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of concurrent browser sessions (default 1)")
	scrapeCmd.Flags().IntVar(&maxPerSession, "max-per-session", 0, "extractions before a session is replaced (default 8)")
	scrapeCmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	scrapeCmd.Flags().StringVar(&chromePath, "chrome-path", "", "path to the Chrome or Chromium binary")
	scrapeCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "page navigations per minute across all workers (default 6)")
	scrapeCmd.Flags().DurationVar(&timeout, "timeout", 0, "upper bound for one extraction (default 10m)")
	scrapeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	scrapeCmd.Flags().BoolVar(&noJitter, "no-jitter", false, "use fixed minimum delays instead of randomised ones")
	scrapeCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "skip ids whose result is already in --output")
	scrapeCmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output (default: on for terminals)")
}

// scrapeFlags collects the flags the user actually set
func scrapeFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if mode != "" {
		flags["mode"] = mode
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if workers > 0 {
		flags["workers"] = workers
	}
	if maxPerSession > 0 {
		flags["max-per-session"] = maxPerSession
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if chromePath != "" {
		flags["chrome-path"] = chromePath
	}
	if rateLimit > 0 {
		flags["requests-per-minute"] = rateLimit
	}
	if timeout > 0 {
		flags["timeout"] = timeout
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	if noJitter {
		flags["no-jitter"] = true
	}
	if cmd.Flags().Changed("skip-existing") {
		flags["skip-existing"] = skipExisting
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

// parseIDs converts positional arguments into business ids, keeping the first
// occurrence of duplicates
func parseIDs(args []string) ([]int64, error) {
	seen := make(map[int64]bool, len(args))
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid organisation id %q", arg)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func runScrape(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, scrapeFlags(cmd))
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("yareviews starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.InitRegistry()
	go metrics.Serve(ctx, cfg.Metrics.Address, reg, log)

	var explicitPretty *bool
	if cmd.Flags().Changed("pretty") {
		explicitPretty = &pretty
	} else if cfg.Output.Directory != "" {
		explicitPretty = &cfg.Output.Pretty
	}

	launcher := browser.NewChromeLauncher(log, cfg.Browser.NavigationTimeout, 0)
	b := &batch{
		cfg:      cfg,
		launcher: launcher,
		log:      log,
		stdout:   cmd.OutOrStdout(),
		pretty:   ui.PrettyJSON(os.Stdout, explicitPretty),
	}

	failed, err := b.run(ctx, ids)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d extractions failed", failed, len(ids))
	}
	return nil
}

// batch runs a set of extractions on a worker pool
type batch struct {
	cfg      *config.Config
	launcher browser.Launcher
	log      logger.Logger
	stdout   io.Writer
	pretty   bool
}

func (b *batch) newExtractor(limiter ratelimit.Limiter) worker.ExtractorFactory {
	return func(workerID int) worker.Extractor {
		timing := b.cfg.Timing
		if timing.Seed != 0 {
			timing.Seed += int64(workerID)
		}

		opts := session.OptionsFromConfig(b.cfg)
		opts.Launcher = b.launcher
		opts.Limiter = limiter
		opts.Logger = b.log.WithField("worker", workerID)
		opts.Policy = humanize.NewJitter(timing)
		opts.Seed = timing.Seed
		return session.New(opts)
	}
}

// run extracts every id and writes the results. It returns how many results
// carry an error.
func (b *batch) run(ctx context.Context, ids []int64) (int, error) {
	var store *storage.Manager
	if dir := b.cfg.Output.Directory; dir != "" {
		var err error
		if store, err = storage.NewManager(dir, b.pretty); err != nil {
			return 0, err
		}
	}

	limiter := ratelimit.New(b.cfg.Scrape.RequestsPerMinute)
	poolCfg := worker.Config{
		NumWorkers:   min(b.cfg.Scrape.Workers, len(ids)),
		Timeout:      b.cfg.Scrape.Timeout,
		SkipExisting: b.cfg.Output.SkipExisting,
		Logger:       b.log,
	}
	if store != nil {
		poolCfg.Storage = store
	}

	logger.LogComponentStart(b.log, "batch", map[string]interface{}{
		"ids":     len(ids),
		"workers": poolCfg.NumWorkers,
		"mode":    b.cfg.Scrape.Mode,
	})

	pool := worker.NewWorkerPool(ctx, b.newExtractor(limiter), poolCfg)
	pool.Start()

	go func() {
		for _, id := range ids {
			if err := pool.Submit(worker.Job{OrgID: id, Mode: models.Mode(strings.ToLower(b.cfg.Scrape.Mode))}); err != nil {
				b.log.WithError(err).Warn("Job not submitted")
				break
			}
		}
		pool.Stop()
	}()

	tracker := ui.NewStatusTracker(len(ids))
	results := make(map[int64]models.Result, len(ids))
	failed := 0
	for r := range pool.Results() {
		outcome := "ok"
		switch {
		case r.Skipped:
			outcome = "skipped"
		case r.Result.Failed():
			outcome = r.Result.Error
			failed++
		case r.Error != nil:
			outcome = r.Error.Error()
			failed++
		}
		tracker.Record(outcome != "ok" && outcome != "skipped", r.Skipped)
		tracker.PrintProgress(r.Job.OrgID, outcome)
		if !r.Skipped {
			results[r.Job.OrgID] = r.Result
		}
	}

	logger.LogComponentStop(b.log, "batch", tracker.Summary())
	ui.PrintSuccess(tracker.Summary())

	if ctx.Err() != nil {
		return failed, ctx.Err()
	}
	if store != nil {
		ui.PrintInfo("Saved to", store.GetOutputDir())
		return failed, nil
	}
	return failed, b.writeStdout(ids, results)
}

func (b *batch) writeStdout(ids []int64, results map[int64]models.Result) error {
	if len(ids) == 1 {
		return storage.WriteResult(b.stdout, results[ids[0]], b.pretty)
	}

	byID := make(map[string]models.Result, len(results))
	for id, res := range results {
		byID[strconv.FormatInt(id, 10)] = res
	}
	enc := json.NewEncoder(b.stdout)
	enc.SetEscapeHTML(false)
	if b.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(byID)
}
