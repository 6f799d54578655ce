package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/avscan/internal/config"
	"github.com/lu-zhengda/avscan/internal/engine"
	"github.com/lu-zhengda/avscan/internal/report"
	"github.com/lu-zhengda/avscan/internal/scancache"
	"github.com/lu-zhengda/avscan/internal/scanner"
	"github.com/lu-zhengda/avscan/internal/store"
	"github.com/lu-zhengda/avscan/internal/tui"
	"github.com/lu-zhengda/avscan/internal/utils"
)

var (
	scanWorkers    int
	scanTUI        bool
	scanNoReport   bool
	scanReportPath string
	scanStdout     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a directory tree for malware",
	Long:  "Walk a directory tree and flag files with suspicious extensions or known\nmalware signatures. Without a path the last scanned path is used.\nPress Ctrl+C to stop early; partial results are still reported.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := currentConfig().LastScanPath
		if len(args) > 0 {
			root = args[0]
		}
		if root == "" {
			return fmt.Errorf("no path given and no previous scan path configured")
		}
		return runScanCommand(cmd, root)
	},
}

func init() {
	scanCmd.Flags().IntVarP(&scanWorkers, "workers", "w", 0, "Number of files to inspect in parallel (default from config)")
	scanCmd.Flags().BoolVar(&scanTUI, "tui", false, "Show an interactive progress view")
	scanCmd.Flags().BoolVar(&scanNoReport, "no-report", false, "Do not write a threat report")
	scanCmd.Flags().StringVar(&scanReportPath, "report", "", "Write the threat report to this path (default from config)")
	scanCmd.Flags().BoolVar(&scanStdout, "stdout", false, "Print the full threat report instead of the summary")
}

type scanOptions struct {
	Workers    int
	NoReport   bool
	ReportPath string
}

// scanOutcome is what a finished scan left behind.
type scanOutcome struct {
	Summary    scanner.Summary
	ReportPath string
	Diff       *scancache.DiffResult
}

// newEngine builds an engine from the configured signatures, size cap,
// exclusions and worker count. A positive workers overrides the config.
func newEngine(cfg *config.Config, workers int) *engine.Engine {
	inspector := scanner.NewInspector(loadSignatures(cfg))
	inspector.SetMaxSize(cfg.MaxFileSizeBytes())

	e := engine.New(inspector)
	e.SetExcludeFunc(cfg.IsExcluded)
	if workers > 0 {
		e.SetWorkers(workers)
	} else {
		e.SetWorkers(cfg.WorkerCount())
	}
	return e
}

func runScanCommand(cmd *cobra.Command, root string) error {
	cfg := currentConfig()
	root = utils.ResolvePath(root)
	opts := scanOptions{Workers: scanWorkers, NoReport: scanNoReport, ReportPath: scanReportPath}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := newEngine(cfg, opts.Workers).Start(ctx, root)

	var (
		summary scanner.Summary
		err     error
	)
	if scanTUI && !jsonFlag {
		summary, err = followTUI(run, root)
	} else {
		summary, err = followEvents(run, !jsonFlag)
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	outcome := recordScan(cfg, configPath, summary, opts, time.Now())

	if jsonFlag {
		return printJSON(buildScanJSON(outcome.Summary, outcome.Diff, outcome.ReportPath))
	}
	if scanStdout && outcome.Summary.FindingsCount() > 0 {
		return report.Render(os.Stdout, outcome.Summary, time.Now())
	}
	printScanResults(outcome.Summary, outcome.Diff, outcome.ReportPath)
	return nil
}

// followEvents drains the run's events, printing progress and threats as
// they arrive when live is set.
func followEvents(run *engine.Run, live bool) (scanner.Summary, error) {
	for ev := range run.Events() {
		if !live {
			continue
		}
		switch ev.Kind {
		case engine.EventProgress:
			fmt.Fprintf(os.Stderr, "\rScanning... %d/%d files (%.0f%%)", ev.Completed, ev.Total, ev.Percent())
		case engine.EventThreat:
			fmt.Fprintf(os.Stderr, "\r\033[K")
			fmt.Printf("  [!] %s\n", ev.Path)
		case engine.EventComplete, engine.EventError:
			fmt.Fprintln(os.Stderr)
		}
	}
	return run.Wait()
}

// followTUI runs the interactive view until the user quits. Quitting early
// cancels the scan and keeps its partial summary.
func followTUI(run *engine.Run, root string) (scanner.Summary, error) {
	final, err := tea.NewProgram(tui.NewScan(run, root), tea.WithAltScreen()).Run()
	if err != nil {
		run.Cancel()
		run.Wait()
		return scanner.Summary{}, fmt.Errorf("interactive view failed: %w", err)
	}
	if m, ok := final.(tui.ScanModel); ok {
		if summary, done, err := m.Result(); done {
			return summary, err
		}
	}
	run.Cancel()
	return run.Wait()
}

// recordScan persists a finished scan: threat report, history entry,
// findings database and last-scan snapshot. Each failure is logged and the
// remaining steps still run.
func recordScan(cfg *config.Config, cfgPath string, summary scanner.Summary, opts scanOptions, now time.Time) scanOutcome {
	outcome := scanOutcome{Summary: summary}

	if !opts.NoReport {
		reportPath := opts.ReportPath
		if reportPath == "" {
			reportPath = cfg.ReportPath
		}
		writer := report.NewWriter(osFs, utils.ExpandHome(reportPath))
		written, err := writer.Write(summary)
		if err != nil {
			if errors.Is(err, report.ErrReportWriteFailed) {
				log.Warn().Err(err).Str("path", writer.Path()).Msg("threat report not written")
			} else {
				log.Error().Err(err).Msg("unexpected report error")
			}
		}
		outcome.ReportPath = written
	}

	if err := cfg.RecordScan(cfgPath, summary, now); err != nil {
		log.Warn().Err(err).Str("path", cfgPath).Msg("failed to record scan history")
	}

	if db, err := store.Open(utils.ExpandHome(cfg.DatabasePath)); err != nil {
		log.Warn().Err(err).Msg("findings database unavailable")
	} else {
		if err := db.SaveSummary(summary); err != nil {
			log.Warn().Err(err).Msg("failed to save scan to database")
		}
		db.Close()
	}

	cachePath := scancache.DefaultPath(filepath.Dir(cfgPath))
	snap := scancache.FromSummary(summary, now)
	if prev, err := scancache.Load(cachePath, summary.Root); err == nil {
		diff := scancache.Diff(prev, snap)
		outcome.Diff = &diff
	} else if !errors.Is(err, scancache.ErrNoSnapshot) {
		log.Debug().Err(err).Msg("previous scan snapshot unreadable")
	}
	if err := scancache.Save(cachePath, snap); err != nil {
		log.Warn().Err(err).Msg("failed to save scan snapshot")
	}

	return outcome
}
