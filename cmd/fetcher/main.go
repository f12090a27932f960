package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"sbpcli/internal/config"
	"sbpcli/internal/infrastructure"
)

// workbookPathPattern is the portal path of one monthly balance
// workbook, relative to the configured base URL.
const workbookPathPattern = "/documentos/financieros/balances/balance_%04d_%02d.xlsx"

// period identifies one monthly workbook.
type period struct {
	Year  int
	Month int
}

func (p period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// outcome classifies how fetching one period ended. The zero value is
// failed so result slots never read as success by default.
type outcome int

const (
	outcomeFailed outcome = iota
	outcomeDownloaded
	outcomeExisting
	outcomeMissing
)

// fetchResult is the per-period record the download workers fill in.
type fetchResult struct {
	Period  period
	Outcome outcome
	Path    string
	Size    int64
	Err     error
}

func main() {
	thisYear := time.Now().UTC().Year()
	fromYear := flag.Int("from", thisYear, "first year to fetch")
	toYear := flag.Int("to", 0, "last year to fetch (defaults to the -from year)")
	outDir := flag.String("out", "", "directory to save workbooks (defaults to data/downloads relative to executable)")
	force := flag.Bool("force", false, "redownload workbooks that already exist")
	logLevel := flag.String("loglevel", "", "log level override: debug, info, warn or error")
	flag.Parse()

	if *toYear == 0 {
		*toYear = *fromYear
	}
	if *fromYear < 1990 || *toYear > thisYear || *fromYear > *toYear {
		fmt.Fprintf(os.Stderr, "invalid year range %d..%d\n", *fromYear, *toYear)
		os.Exit(1)
	}

	// Initialize paths first to get default directories
	paths, err := config.GetPaths()
	if err != nil {
		fmt.Printf("Error: Failed to initialize paths: %v\n", err)
		os.Exit(1)
	}

	if *outDir == "" {
		*outDir = paths.DownloadsDir
	}

	if err := paths.EnsureDirectories(); err != nil {
		fmt.Printf("Error: Failed to create required directories: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Printf("Error: Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Warning: Failed to load config, using defaults: %v\n", err)
		cfg = &config.Config{
			Logging: config.LoggingConfig{
				Level:    "info",
				Format:   "json",
				Output:   "both",
				FilePath: paths.GetLogPath("fetch.log"),
			},
			Fetcher: config.FetcherConfig{
				BaseURL:        "https://www.superbancos.gob.pa",
				Timeout:        60 * time.Second,
				RetryCount:     3,
				RetryWait:      2 * time.Second,
				RequestsPerSec: 2,
				Concurrency:    4,
			},
		}
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Warning: Failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}

	logger.Info("Starting balance workbook fetch",
		slog.Int("from_year", *fromYear),
		slog.Int("to_year", *toYear),
		slog.String("output_dir", *outDir),
		slog.String("base_url", cfg.Fetcher.BaseURL),
		slog.Bool("force", *force))

	periods := monthsInRange(*fromYear, *toYear, time.Now().UTC())
	if len(periods) == 0 {
		fmt.Println("No published months in range, nothing to fetch")
		return
	}
	fmt.Printf("Fetching %d monthly workbooks (%s .. %s)\n",
		len(periods), periods[0], periods[len(periods)-1])

	// Cancel in-flight downloads on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newClient(cfg.Fetcher)
	limiter := rate.NewLimiter(rate.Limit(cfg.Fetcher.RequestsPerSec), 1)

	results := fetchAll(ctx, client, limiter, cfg.Fetcher.Concurrency, periods, *outDir, *force, logger)

	downloaded, existing, missing, failed := tally(results)
	fmt.Println()
	fmt.Printf("Downloaded: %d\n", downloaded)
	fmt.Printf("Existing:   %d\n", existing)
	fmt.Printf("Missing:    %d\n", missing)
	fmt.Printf("Failed:     %d\n", failed)

	logger.Info("Fetch completed",
		slog.Int("downloaded", downloaded),
		slog.Int("existing", existing),
		slog.Int("missing", missing),
		slog.Int("failed", failed))

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "fetch interrupted")
		os.Exit(1)
	}
	if failed > 0 {
		for _, r := range results {
			if r.Outcome == outcomeFailed {
				fmt.Fprintf(os.Stderr, "fetch %s failed: %v\n", r.Period, r.Err)
			}
		}
		os.Exit(1)
	}
}

// newClient builds the resty client used for all workbook downloads:
// portal base URL, request timeout and retry with backoff on transport
// errors and 5xx responses.
func newClient(cfg config.FetcherConfig) *resty.Client {
	return resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(10 * cfg.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
}

// monthsInRange expands a year range into the monthly periods the
// portal can have published by now. Months at or after the current one
// are excluded; the workbook for a month appears only after it closes.
func monthsInRange(fromYear, toYear int, now time.Time) []period {
	var periods []period
	for year := fromYear; year <= toYear; year++ {
		for month := 1; month <= 12; month++ {
			if year > now.Year() {
				continue
			}
			if year == now.Year() && month >= int(now.Month()) {
				continue
			}
			periods = append(periods, period{Year: year, Month: month})
		}
	}
	return periods
}

// fetchAll downloads every period concurrently, bounded by the
// configured worker limit and paced by the shared rate limiter. One
// failed month never aborts the others; each worker records its own
// result slot and the caller decides the exit code from the tally.
func fetchAll(ctx context.Context, client *resty.Client, limiter *rate.Limiter, concurrency int, periods []period, outDir string, force bool, logger *slog.Logger) []fetchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]fetchResult, len(periods))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, p := range periods {
		i, p := i, p

		g.Go(func() error {
			dest := workbookDest(outDir, p)
			results[i] = fetchResult{Period: p, Path: dest}

			if !force {
				if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
					logger.Debug("Workbook already downloaded",
						slog.String("period", p.String()),
						slog.String("path", dest))
					results[i].Outcome = outcomeExisting
					results[i].Size = info.Size()
					return nil
				}
			}

			size, err := downloadWorkbook(gCtx, client, limiter, p, dest)
			switch {
			case err == nil:
				logger.Info("Workbook downloaded",
					slog.String("period", p.String()),
					slog.String("path", dest),
					slog.Int64("bytes", size))
				fmt.Printf("Downloaded %s (%d bytes)\n", p, size)
				results[i].Outcome = outcomeDownloaded
				results[i].Size = size
			case errors.Is(err, errNotPublished):
				logger.Warn("Workbook not published yet",
					slog.String("period", p.String()))
				fmt.Printf("Not published: %s\n", p)
				results[i].Outcome = outcomeMissing
			default:
				logger.Error("Workbook download failed",
					slog.String("period", p.String()),
					slog.String("error", err.Error()))
				results[i].Err = err
			}

			// Stop scheduling new downloads once the context is gone.
			return gCtx.Err()
		})
	}

	// The only group error is context cancellation, already reflected
	// in the per-period results.
	_ = g.Wait()

	return results
}

// errNotPublished marks a 404 from the portal: the month's workbook is
// not available yet. Callers treat it as a skip, not a failure.
var errNotPublished = errors.New("workbook not published")

// downloadWorkbook fetches one monthly workbook and writes it to dest.
// The write goes through a temp file so a cancelled download never
// leaves a truncated workbook for the parser to trip over.
func downloadWorkbook(ctx context.Context, client *resty.Client, limiter *rate.Limiter, p period, dest string) (int64, error) {
	if err := limiter.Wait(ctx); err != nil {
		return 0, err
	}

	resp, err := client.R().
		SetContext(ctx).
		Get(fmt.Sprintf(workbookPathPattern, p.Year, p.Month))
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", p, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return 0, errNotPublished
	case resp.StatusCode() != http.StatusOK:
		return 0, fmt.Errorf("download %s: unexpected status %s", p, resp.Status())
	}

	body := resp.Body()
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return 0, fmt.Errorf("rename %s: %w", tmp, err)
	}

	return int64(len(body)), nil
}

// workbookDest names the local file for one period, matching the
// balance_YYYY_MM.xlsx convention the discovery and parser layers key
// on.
func workbookDest(outDir string, p period) string {
	return filepath.Join(outDir, fmt.Sprintf("balance_%04d_%02d.xlsx", p.Year, p.Month))
}

// tally folds per-period results into the summary counts.
func tally(results []fetchResult) (downloaded, existing, missing, failed int) {
	for _, r := range results {
		switch r.Outcome {
		case outcomeDownloaded:
			downloaded++
		case outcomeExisting:
			existing++
		case outcomeMissing:
			missing++
		case outcomeFailed:
			failed++
		}
	}
	return downloaded, existing, missing, failed
}
