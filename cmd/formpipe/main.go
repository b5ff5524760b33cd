package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mids-neo/mnr-form-api/internal/cache"
	"github.com/mids-neo/mnr-form-api/internal/config"
	"github.com/mids-neo/mnr-form-api/internal/document"
	"github.com/mids-neo/mnr-form-api/internal/extract"
	"github.com/mids-neo/mnr-form-api/internal/pipeline"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures the process-wide slog handler from the configured
// level. Logs go to stderr so result JSON on stdout stays parseable.
func setupLogging(cfg *config.Config) *slog.Logger {
	levels := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levels[cfg.LogLevel],
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// progressPrinter streams stage events to stderr for interactive runs.
type progressPrinter struct{}

func (progressPrinter) OnProgress(stage pipeline.Stage, message string, completed bool, _ map[string]any) {
	marker := "..."
	if completed {
		marker = "ok"
	}
	fmt.Fprintf(os.Stderr, "[%s] %s %s\n", stage, message, marker)
}

func (progressPrinter) OnError(stage pipeline.Stage, err error) {
	fmt.Fprintf(os.Stderr, "[%s] failed: %v\n", stage, err)
}

func buildExtractors(cfg *config.Config, logger *slog.Logger) []extract.Extractor {
	raster := document.NewRasterizer(cfg.PdftoppmBin, cfg.RasterDPI, logger)

	var extractors []extract.Extractor
	if cfg.VisionAPIKey != "" {
		extractors = append(extractors, extract.NewVisionExtractor(extract.VisionConfig{
			APIKey:  cfg.VisionAPIKey,
			BaseURL: cfg.VisionBaseURL,
			Model:   cfg.VisionModel,
		}, raster, logger))
	}
	extractors = append(extractors, extract.NewLegacyExtractor(extract.LegacyConfig{
		Tesseract: cfg.TesseractBin,
	}, raster, logger))
	return extractors
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}
	if cfg.IsDebug() {
		logger.Debug("starting", "config", cfg.String())
	}

	if pflag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: input document path required")
		fmt.Fprintln(os.Stderr, "Usage: formpipe [flags] <scan.pdf|scan.png>")
		os.Exit(1)
	}

	doc, err := document.Load(pflag.Arg(0), cfg.MaxFileSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load document: %v\n", err)
		os.Exit(1)
	}

	orchestrator, err := extract.NewOrchestrator(logger, buildExtractors(cfg, logger)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up extraction: %v\n", err)
		os.Exit(1)
	}

	store := cache.NewStore(time.Duration(cfg.CacheTTLMin) * time.Minute)
	coordinator, err := pipeline.New(cfg, orchestrator, store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up pipeline: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result := coordinator.Process(ctx, doc, "", progressPrinter{})

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))

	if !result.Success {
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MNR Form Pipeline\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
