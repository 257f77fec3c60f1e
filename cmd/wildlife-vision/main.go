package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/wildlife-vision/internal/config"
	"github.com/fpang/wildlife-vision/internal/logging"
	"github.com/fpang/wildlife-vision/internal/report"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitCancelled is the conventional exit status after SIGINT.
const exitCancelled = 130

var errCancelled = errors.New("cancelled by user")

// exitError carries a specific process exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// rootOptions holds the persistent flags and the configuration they produce.
type rootOptions struct {
	envFile     string
	metadataDir string
	reportsDir  string
	scratchDir  string
	backend     string
	format      string
	locale      string

	cfg      *config.Config
	closeLog func()
}

func newRootCmd(o *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "wildlife-vision",
		Short: "Classify camera-trap images and keep a browsable history of results",
		Long: `Wildlife Vision runs a vision model over camera-trap images and zip archives
of images, counts the animals it finds, saves every completed run to a local
history, and exports spreadsheet reports from that history.

Examples:
  wildlife-vision classify ./trap-2024-05.zip ./extra/IMG_0042.jpg
  wildlife-vision classify --pick
  wildlife-vision detect ./IMG_0042.jpg
  wildlife-vision video ./clip.mp4 --fps 0.5
  wildlife-vision history list
  wildlife-vision reports sync`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.envFile, "env-file", ".env", "Optional .env file with WILDLIFE_* settings")
	pf.StringVar(&o.metadataDir, "metadata-dir", "", "History record directory (overrides WILDLIFE_METADATA_DIR)")
	pf.StringVar(&o.reportsDir, "reports-dir", "", "Report directory (overrides WILDLIFE_REPORTS_DIR)")
	pf.StringVar(&o.scratchDir, "scratch-dir", "", "Scratch directory for extracted archives (overrides WILDLIFE_SCRATCH_DIR)")
	pf.StringVar(&o.backend, "backend", "", "Vision backend: gemini or remote (overrides WILDLIFE_MODEL_BACKEND)")
	pf.StringVar(&o.format, "format", "", "Report format: xlsx or csv (overrides WILDLIFE_REPORT_FORMAT)")
	pf.StringVar(&o.locale, "locale", "", "Report language: en or ru (overrides WILDLIFE_REPORT_LOCALE)")

	root.AddCommand(
		newClassifyCmd(o),
		newDetectCmd(o),
		newVideoCmd(o),
		newHistoryCmd(o),
		newReportsCmd(o),
		newMCPCmd(o),
	)
	return root
}

// load reads configuration, applies flag overrides and starts logging.
func (o *rootOptions) load(cmd *cobra.Command) error {
	start := time.Now()

	cfg, err := config.Load(o.envFile)
	if err != nil {
		return err
	}
	o.closeLog = logging.Init()

	if o.metadataDir != "" {
		cfg.Store.MetadataDir = o.metadataDir
	}
	if o.reportsDir != "" {
		cfg.Store.ReportsDir = o.reportsDir
	}
	if o.scratchDir != "" {
		cfg.Store.ScratchDir = o.scratchDir
	}
	if o.backend != "" {
		cfg.Model.Backend = config.Backend(strings.ToLower(o.backend))
	}
	if o.format != "" {
		if cfg.Report.Format, err = report.ParseFormat(o.format); err != nil {
			return err
		}
	}
	if o.locale != "" {
		if cfg.Report.Locale, err = report.ParseLocale(o.locale); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	logging.NewStartupLogger(cmd.Name()).
		Version(version).
		Dir("metadata", cfg.Store.MetadataDir).
		Dir("reports", cfg.Store.ReportsDir).
		Dir("scratch", cfg.Store.ScratchDir).
		S3Bucket("reports", cfg.Report.Bucket).
		SSMParam("apiKey", cfg.Model.APIKeyParam).
		Feature("reportMirror", cfg.MirrorEnabled()).
		Config("modelBackend", string(cfg.Model.Backend)).
		Config("reportFormat", string(cfg.Report.Format)).
		Config("reportLocale", string(cfg.Report.Locale)).
		InitDuration(time.Since(start)).
		Log()
	return nil
}

func (o *rootOptions) close() {
	if o.closeLog != nil {
		o.closeLog()
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o := &rootOptions{}
	defer o.close()

	root := newRootCmd(o)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, "Error:", err)

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
