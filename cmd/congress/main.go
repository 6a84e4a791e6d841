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
	"strings"
	"syscall"
	"time"

	"github.com/Leveneer/congress-member-data/api"
	"github.com/Leveneer/congress-member-data/config"
	"github.com/Leveneer/congress-member-data/congress"
	"github.com/Leveneer/congress-member-data/models"
	"github.com/Leveneer/congress-member-data/pipeline"
	"github.com/Leveneer/congress-member-data/retriever"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaultCfg := config.DefaultConfig()
	outputDefault := ""
	if value, ok := config.EnvString("CONGRESS_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("CONGRESS_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	congressNum := flag.Int("congress", 0, "Congress number (e.g. 118)")
	whichYear := flag.Int("which", 0, "Look up the congress number(s) for a year")
	chamber := flag.String("chamber", "", "Chamber filter: House/Senate (H/S accepted)")
	state := flag.String("state", "", "Two-letter state code filter")
	output := flag.String("output", outputDefault, "Output filename (written under the results directory)")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, or dual")
	apiKey := flag.String("api-key", "", "Congress.gov API key (default: .env or CONGRESS_API_KEY)")
	configFile := flag.String("config", "", "Optional YAML config file")
	maxPages := flag.Int("max-pages", defaultCfg.MaxPages, "Defensive pagination bound")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "HTTP timeout (seconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Retry attempts on throttling or server errors")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if *congressNum != 0 && *whichYear != 0 {
		fmt.Fprintln(os.Stderr, "Error: --congress and --which are mutually exclusive")
		os.Exit(1)
	}

	if *whichYear != 0 {
		if err := printSessions(*whichYear); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *congressNum == 0 {
		fmt.Fprintln(os.Stderr, "Error: --congress is required (or use --which YEAR)")
		os.Exit(1)
	}

	cfg := defaultCfg
	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			slog.Error("loading config file", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Explicit flags win over the config file; untouched flags keep the
	// file's values.
	passed := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { passed[f.Name] = true })
	if passed["max-pages"] || cfg.MaxPages == 0 {
		cfg.MaxPages = *maxPages
	}
	if passed["timeout"] {
		cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	}
	if passed["max-retries"] {
		cfg.MaxRetries = *maxRetries
	}
	if passed["retry-backoff"] {
		cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	}
	if passed["retry-backoff-max"] {
		cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	}
	if passed["format"] {
		cfg.OutputFormat = strings.ToLower(*outputFormat)
	}
	if passed["metrics-addr"] || cfg.MetricsAddr == "" {
		cfg.MetricsAddr = *metricsAddr
	}
	cfg.Verbose = cfg.Verbose || *verbose
	if *output != "" {
		cfg.OutputFile = *output
	}

	cfg.APIKey = config.ResolveAPIKey(*apiKey)
	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key must be provided via --api-key, a .env file, or the CONGRESS_API_KEY environment variable")
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	normalizedChamber, err := retriever.NormalizeChamber(*chamber)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		slog.Error("initialising api client", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && client.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(client.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting retrieval",
		slog.Int("congress", *congressNum),
		slog.String("chamber", normalizedChamber),
		slog.String("state", strings.ToUpper(*state)),
	)

	r := retriever.New(client, cfg)
	result, err := r.Retrieve(ctx, *congressNum, retriever.Options{
		Chamber: normalizedChamber,
		State:   *state,
	})
	if err != nil {
		slog.Error("retrieval failed", slog.Any("error", err))
		os.Exit(1)
	}

	// The writer is created only after a fully successful retrieval so a
	// failed run never leaves a partial file behind.
	outputPath, err := resolveOutputPath(cfg, result.Congress, normalizedChamber, *state)
	if err != nil {
		slog.Error("resolving output path", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, outputPath)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Write(result.Members); err != nil {
		writer.Close()
		slog.Error("writing output", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		writer.Close()
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		slog.Error("closing writer", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, outputPath)
}

func printSessions(year int) error {
	maxYear := time.Now().Year() + 1
	if year > maxYear {
		return fmt.Errorf("invalid year %d, must be between %d and %d", year, congress.FirstYear, maxYear)
	}

	sessions, err := congress.SessionsForYear(year)
	if err != nil {
		return err
	}

	labels := make([]string, 0, len(sessions))
	for _, s := range sessions {
		labels = append(labels, fmt.Sprintf("%s Congress (%s)", s.Ordinal, s.Label))
	}

	fmt.Printf("\nCongress in session during %d:\n", year)
	fmt.Printf("  %s\n", strings.Join(labels, " & "))
	return nil
}

func resolveOutputPath(cfg *config.Config, congressNum int, chamber, state string) (string, error) {
	filename := cfg.OutputFile
	if filename == "" {
		filename = pipeline.DefaultFilename(congressNum, chamber, strings.ToUpper(state))
	}
	return pipeline.OutputPath(cfg.ResultsDir, filename)
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.RetrievalResult, outputPath string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Printf("Retrieved %s Congress members\n", congress.Ordinal(result.Congress))

	fmt.Printf("  Total members: %d\n", result.Stats.Total)
	if note := distributionNote(result.Stats); note != "" {
		fmt.Printf("                 %s\n", note)
	}
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("  Output file:   %s\n", outputPath)
	fmt.Println(separator)
}

// distributionNote mirrors the "including N former, M redistricted" note.
func distributionNote(stats models.RetrievalStats) string {
	var parts []string
	if stats.Former > 0 {
		parts = append(parts, fmt.Sprintf("%d former", stats.Former))
	}
	if stats.Redistricted > 0 {
		parts = append(parts, fmt.Sprintf("%d redistricted", stats.Redistricted))
	}
	if len(parts) == 0 {
		return ""
	}
	return "including " + strings.Join(parts, ", ")
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
