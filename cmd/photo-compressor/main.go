package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"photo-compressor-go/internal/compressor"
	"photo-compressor-go/internal/config"
	"photo-compressor-go/internal/extractor"
	"photo-compressor-go/internal/logger"
	"photo-compressor-go/internal/pipeline"
	"photo-compressor-go/internal/statistics"
	"photo-compressor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	sourceDir string
	outputDir string
	quality   int
	verbose   bool
	quiet     bool
	port      int
)

// rootCmd compresses every supported image under the source directory.
var rootCmd = &cobra.Command{
	Use:   "photo-compressor",
	Short: "Compress a directory tree of images into a mirrored output tree",
	Long: `PhotoCompressor walks a source directory, re-encodes every supported
image (jpg, jpeg, png, gif, webp, bmp, tiff) at the requested quality and
writes the result under the output directory with the same relative layout.

Failed files never stop the batch. They are listed in failed_files.txt
under the output directory once the batch is done.`,
}

// scanCmd prints the manifest of a directory without compressing anything.
var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "List supported images in a directory as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(args)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show format, dimensions and capture date of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

// serveCmd starts the HTTP and websocket boundary.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts an HTTP server exposing scan, compress and failure export
endpoints under /api, with compression progress pushed over /ws.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle: runCompress -> loadConfig reads rootCmd's flags.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCompress(args)
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVar(&sourceDir, "source", "", "source directory containing images")
	rootCmd.Flags().StringVar(&outputDir, "output", "", "output directory for compressed images")
	rootCmd.Flags().IntVar(&quality, "quality", 0, "compression quality 1-100 (default from config)")

	serveCmd.Flags().IntVar(&port, "port", 0, "port to run web server on (default from config)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
}

// runCompress scans the source, compresses the batch and writes the failure report.
func runCompress(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.OutputDirectory == "" {
		return fmt.Errorf("output directory is required (--output or output_directory)")
	}

	log := setupLogger(cfg)
	service := pipeline.NewService(compressor.NewImagingCodec(), log)

	scan := service.ScanDirectory(cfg.SourceDirectory)
	if !scan.OK {
		return fmt.Errorf("scan failed: %s", scan.Error)
	}
	if !quiet {
		fmt.Fprintf(os.Stderr, "Found %d images in %s\n", len(scan.Entries), cfg.SourceDirectory)
	}

	total := len(scan.Entries)
	progress := compressor.ProgressFunc(func(count int) {
		if !quiet {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", count, total, scan.Entries[count-1].RelativePath)
		}
	})

	res := service.CompressBatch(pipeline.CompressBatchRequest{
		Entries:      pipeline.InputsFromEntries(scan.Entries),
		Quality:      cfg.Compression.Quality,
		OutputRoot:   cfg.OutputDirectory,
		DateHandling: cfg.Compression.DateHandling,
		CustomDate:   cfg.Compression.CustomDate,
	}, progress)
	if !res.OK {
		return fmt.Errorf("compression failed: %s", res.Error)
	}

	if !quiet {
		fmt.Println("\n" + res.Summary.String())
	}

	reportPath, err := statistics.ExportFailures(res.Outcomes, cfg.OutputDirectory)
	if err != nil {
		// The batch itself is done; a missing report only loses the listing.
		log.Errorf("Failed to export failure report: %v", err)
		return nil
	}
	if reportPath != "" && !quiet {
		fmt.Printf("\nFailed files listed in: %s\n", reportPath)
	}

	return nil
}

// runScan prints the manifest for the given or configured directory.
func runScan(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	scanDir := cfg.SourceDirectory
	if len(args) > 0 {
		scanDir = args[0]
	}

	log := setupLogger(cfg)
	service := pipeline.NewService(compressor.NewImagingCodec(), log)

	res := service.ScanDirectory(scanDir)
	if !res.OK {
		return fmt.Errorf("scan failed: %s", res.Error)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// runInspect prints image metadata for a single file.
func runInspect(filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	meta, err := extractor.NewEXIFInspector(log).Inspect(filePath)
	if err != nil {
		return fmt.Errorf("inspect failed: %w", err)
	}

	fmt.Printf("File:       %s\n", meta.Path)
	fmt.Printf("Format:     %s\n", meta.Format)
	fmt.Printf("Dimensions: %dx%d\n", meta.Width, meta.Height)
	fmt.Printf("Size:       %d bytes\n", meta.SizeBytes)
	fmt.Printf("Modified:   %s\n", meta.ModTime.Format("2006-01-02 15:04:05"))
	if meta.CapturedAt != nil {
		fmt.Printf("Captured:   %s (%s)\n", meta.CapturedAt.Format("2006-01-02 15:04:05"), meta.DateSource)
	} else {
		fmt.Println("Captured:   no EXIF date")
	}

	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if port == 0 {
		port = cfg.Web.Port
	}
	if err := absOutputDirectory(cfg); err != nil {
		return err
	}

	log := setupLogger(cfg)
	service := pipeline.NewService(compressor.NewImagingCodec(), log)
	server := web.NewServer(cfg, log, service)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("PhotoCompressor API listening on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// overrides holds the command line values that replace config entries.
type overrides struct {
	source     string
	output     string
	quality    int
	qualitySet bool
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	o := overrides{
		source:     sourceDir,
		output:     outputDir,
		quality:    quality,
		qualitySet: rootCmd.Flags().Changed("quality"),
	}
	if err := applyOverrides(cfg, args, o); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides merges flags and positional args into cfg and makes the
// source and output directories absolute. An explicit --quality, even 0, is
// kept as given and clamped per item later.
func applyOverrides(cfg *config.Config, args []string, o overrides) error {
	if o.source != "" {
		cfg.SourceDirectory = o.source
	}
	if o.output != "" {
		cfg.OutputDirectory = o.output
	}
	if o.qualitySet {
		cfg.Compression.Quality = o.quality
	}

	if cfg.SourceDirectory == "" && len(args) > 0 {
		cfg.SourceDirectory = args[0]
	}
	if cfg.SourceDirectory == "" {
		cfg.SourceDirectory = "."
	}

	src, err := filepath.Abs(config.ExpandPath(cfg.SourceDirectory))
	if err != nil {
		return fmt.Errorf("invalid source directory %s: %w", cfg.SourceDirectory, err)
	}
	cfg.SourceDirectory = src

	return absOutputDirectory(cfg)
}

// absOutputDirectory makes a configured output directory absolute so that
// destination and report paths are absolute too.
func absOutputDirectory(cfg *config.Config) error {
	if cfg.OutputDirectory == "" {
		return nil
	}
	out, err := filepath.Abs(config.ExpandPath(cfg.OutputDirectory))
	if err != nil {
		return fmt.Errorf("invalid output directory %s: %w", cfg.OutputDirectory, err)
	}
	cfg.OutputDirectory = out
	return nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	log, err := logger.NewLogger(logger.FromConfig(cfg.Logging, verbose, quiet))
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
