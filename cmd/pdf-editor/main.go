package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-editor-go/internal/compressor"
	"pdf-editor-go/internal/config"
	"pdf-editor-go/internal/document"
	"pdf-editor-go/internal/logger"
	"pdf-editor-go/internal/render"
	"pdf-editor-go/internal/statistics"
	"pdf-editor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	verbose   bool
	quiet     bool
	version   = "dev"
	output    string
	preset    string
	targetMB  string
	targetDir string
	workers   int
	pages     string
	degrees   int
	fromPage  int
	toPage    int
	atPage    int
	before    bool
	pageNr    int
	dpi       float64
	port      int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:     "pdf-editor",
	Short:   "Compress and edit PDF documents",
	Version: version,
	Long: `PDF Editor shrinks PDF documents by downsampling their embedded images
and performs simple page-level edits.

Compression runs either with a named preset (high, medium, low) or towards
a target file size, trying progressively more aggressive settings until the
output fits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// compressCmd compresses a single PDF.
var compressCmd = &cobra.Command{
	Use:   "compress <input.pdf>",
	Short: "Compress a PDF with a preset or towards a target size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), args[0])
	},
}

// batchCmd compresses every PDF under the given paths.
var batchCmd = &cobra.Command{
	Use:   "batch <path>...",
	Short: "Compress every PDF found under files and directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), args)
	},
}

// infoCmd lists pages and images of a PDF.
var infoCmd = &cobra.Command{
	Use:   "info <input.pdf>",
	Short: "Show pages and embedded images of a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(args[0])
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <a.pdf> <b.pdf>...",
	Short: "Merge PDFs in the given order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if output == "" {
			return fmt.Errorf("--output is required")
		}
		if err := document.Merge(args, output); err != nil {
			return err
		}
		return report("Merged %d files into %s", len(args), output)
	},
}

var rotateCmd = &cobra.Command{
	Use:   "rotate <input.pdf>",
	Short: "Rotate pages clockwise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editSession(args[0], func(s *document.Session) error {
			return s.Rotate(pages, degrees)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <input.pdf>",
	Short: "Delete pages, keeping at least one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pages == "" {
			return fmt.Errorf("--pages is required")
		}
		return editSession(args[0], func(s *document.Session) error {
			return s.Delete(pages)
		})
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <input.pdf>",
	Short: "Save selected pages as a new PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if output == "" {
			return fmt.Errorf("--output is required")
		}
		s, err := openSession(args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.SaveAs(output, pages); err != nil {
			return err
		}
		return report("Saved pages %q to %s", pages, output)
	},
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <input.pdf>",
	Short: "Move one page to a new position",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editSession(args[0], func(s *document.Session) error {
			return s.Move(fromPage, toPage)
		})
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert <input.pdf> <other.pdf>",
	Short: "Insert all pages of another PDF before or after a page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editSession(args[0], func(s *document.Session) error {
			return s.Insert(args[1], atPage, before)
		})
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <input.pdf>",
	Short: "Render a page to PNG, JPEG or DOCX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if output == "" {
			return fmt.Errorf("--output is required")
		}
		opts := render.DefaultOptions()
		opts.DPI = dpi
		if err := render.Page(args[0], pageNr, output, opts); err != nil {
			return err
		}
		return report("Rendered page %d to %s", pageNr, output)
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts an HTTP server exposing compression jobs, document inspection,
live progress over WebSocket and Prometheus metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	for _, c := range []*cobra.Command{compressCmd, batchCmd, infoCmd} {
		c.Flags().StringVar(&preset, "preset", "", "compression preset: high, medium or low (default from config)")
	}
	for _, c := range []*cobra.Command{compressCmd, batchCmd} {
		c.Flags().StringVar(&targetMB, "target-mb", "", "target size in MB; overrides --preset")
	}
	for _, c := range []*cobra.Command{compressCmd, mergeCmd, rotateCmd, deleteCmd, extractCmd, reorderCmd, insertCmd, convertCmd} {
		c.Flags().StringVarP(&output, "output", "o", "", "output file")
	}
	for _, c := range []*cobra.Command{rotateCmd, deleteCmd, extractCmd} {
		c.Flags().StringVar(&pages, "pages", "", `page selection, e.g. "1,3-5" (default all pages)`)
	}

	compressCmd.MarkFlagRequired("output")
	batchCmd.Flags().StringVar(&targetDir, "target-dir", "", "directory for compressed files")
	batchCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers (default from config)")
	batchCmd.MarkFlagRequired("target-dir")

	rotateCmd.Flags().IntVar(&degrees, "degrees", 90, "clockwise rotation, a multiple of 90")
	reorderCmd.Flags().IntVar(&fromPage, "from", 0, "page to move")
	reorderCmd.Flags().IntVar(&toPage, "to", 0, "new position")
	insertCmd.Flags().IntVar(&atPage, "at", 1, "reference page")
	insertCmd.Flags().BoolVar(&before, "before", false, "insert before the reference page instead of after")
	convertCmd.Flags().IntVar(&pageNr, "page", 1, "page to render")
	convertCmd.Flags().Float64Var(&dpi, "dpi", render.DefaultDPI, "render resolution")

	serveCmd.Flags().IntVar(&port, "port", 0, "port to run web server on (default from config)")

	rootCmd.AddCommand(compressCmd, batchCmd, infoCmd, mergeCmd, rotateCmd, deleteCmd,
		extractCmd, reorderCmd, insertCmd, convertCmd, serveCmd)
}

// runCompress compresses one file and prints the result.
func runCompress(ctx context.Context, input string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	target, err := parseTarget()
	if err != nil {
		return err
	}

	stats := statistics.NewStatistics()
	pipeline := compressor.NewPipeline(document.NewPDFCPUOpener(), compressor.OptionsFromConfig(cfg.Compression), log, stats)
	res, err := pipeline.Compress(ctx, compressor.Request{
		SourcePath:  input,
		OutputPath:  output,
		Preset:      presetOr(cfg),
		TargetBytes: target,
	})
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}

	return report("%s\nSaved %.1f%% in %d attempt(s)", res.Summary(), res.PercentageSaved(), len(res.Attempts))
}

// runBatch compresses all PDFs under paths.
func runBatch(ctx context.Context, paths []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	target, err := parseTarget()
	if err != nil {
		return err
	}
	n := cfg.Batch.Workers
	if workers > 0 {
		n = workers
	}

	stats := statistics.NewStatistics()
	pipeline := compressor.NewPipeline(document.NewPDFCPUOpener(), compressor.OptionsFromConfig(cfg.Compression), log, stats)
	results, err := compressor.NewBatch(pipeline, log, stats).Run(ctx, compressor.BatchParams{
		InputPaths:  paths,
		TargetDir:   targetDir,
		Preset:      presetOr(cfg),
		TargetBytes: target,
		Workers:     n,
		Extensions:  cfg.Batch.Extensions,
		Threshold:   cfg.Batch.Threshold,
	})
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	stats.Finalize()

	if !quiet {
		for _, r := range results {
			fmt.Printf("%-14s %s -> %s\n", r.Action, r.InputPath, r.Message)
		}
		fmt.Println("\n" + stats.GetSummary())
		fmt.Println("\n" + stats.GetOutcomeBreakdown())
		fmt.Println(stats.GetErrorSummary())
	}
	return nil
}

// runInfo prints the pages and images of a PDF.
func runInfo(input string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	doc, err := document.NewPDFCPUOpener().Open(input)
	if err != nil {
		return err
	}
	defer doc.Close()

	opts := compressor.OptionsFromConfig(cfg.Compression)
	info := compressor.Inspect(doc, opts, opts.Lookup(presetOr(cfg)), log)
	fmt.Print(info.String())
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, log, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
		log = setupLogger(cfg)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("PDF Editor API listening on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	server.Wait()

	fmt.Println("Server stopped gracefully")
	return nil
}

// editSession applies edit to a working copy of input and saves it to
// --output, or over input when no output is given.
func editSession(input string, edit func(*document.Session) error) error {
	s, err := openSession(input)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := edit(s); err != nil {
		return err
	}
	if output == "" {
		if err := s.SaveOverwrite(); err != nil {
			return err
		}
		return report("Saved %s", input)
	}
	if err := s.SaveAs(output, ""); err != nil {
		return err
	}
	return report("Saved %s", output)
}

func openSession(input string) (*document.Session, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, err
	}
	s, err := document.OpenSession(input, cfg.Session.TempDir)
	if err != nil {
		return nil, err
	}
	logger.WithFileOperation(log, input, "edit").WithField("work_copy", s.WorkPath).Debug("Session opened")
	return s, nil
}

// setup loads configuration and builds the logger.
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, setupLogger(cfg), nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	log, err := logger.New(cfg.Logging, logger.Options{Verbose: verbose, Quiet: quiet})
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

func parseTarget() (int64, error) {
	if targetMB == "" {
		return 0, nil
	}
	return compressor.ParseTargetMB(targetMB)
}

func presetOr(cfg *config.Config) string {
	if preset != "" {
		return preset
	}
	return cfg.Compression.DefaultPreset
}

func report(format string, args ...interface{}) error {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
	return nil
}

func main() {
	// Ctrl+C stops a compression between attempts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
