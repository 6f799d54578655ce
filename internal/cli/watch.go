package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/avscan/internal/scanner"
	"github.com/lu-zhengda/avscan/internal/utils"
	"github.com/lu-zhengda/avscan/internal/watcher"
)

const (
	watchCacheSize = 4096
	watchCacheTTL  = 10 * time.Minute
)

var (
	watchDebounce int
	watchDuration int
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Inspect files as they are created or modified",
	Long:  "Watch a directory tree and inspect every file that is created or written.\nThreats are printed as they appear. Runs until interrupted or until --duration elapses.\nWith --json, each threat is printed as one JSON object.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig()
		root := cfg.LastScanPath
		if len(args) > 0 {
			root = args[0]
		}
		if root == "" {
			return fmt.Errorf("no path given and no previous scan path configured")
		}
		root = utils.ResolvePath(root)
		if !utils.DirExists(root) {
			return fmt.Errorf("%s is not a directory", root)
		}

		inspector := scanner.NewInspector(loadSignatures(cfg))
		inspector.SetMaxSize(cfg.MaxFileSizeBytes())
		cached := scanner.NewCachedInspector(inspector, watchCacheSize, watchCacheTTL)

		wcfg := watcher.DefaultConfig(root)
		wcfg.DebounceInterval = time.Duration(watchDebounce) * time.Millisecond
		wcfg.Exclude = cfg.IsExcluded
		wcfg.OnThreat = func(f scanner.Finding) {
			if jsonFlag {
				if err := printJSON(findingJSON{Path: f.Path, Risk: f.Risk().String(), Reasons: f.Reasons}); err != nil {
					log.Error().Err(err).Msg("failed to write finding")
				}
				return
			}
			fmt.Printf("%s  [!] %s\n", time.Now().Format("15:04:05"), f.Path)
			for _, r := range f.Reasons {
				fmt.Printf("      - %s\n", r)
			}
		}

		w, err := watcher.New(cached, wcfg)
		if err != nil {
			return err
		}
		defer w.Stop()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if watchDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(watchDuration)*time.Second)
			defer cancel()
		}

		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}

		if !jsonFlag {
			fmt.Printf("Watching %s (Ctrl+C to stop)\n", root)
		}

		<-w.Done()

		if !jsonFlag {
			fmt.Printf("\nStopped. %d file(s) inspected.\n", w.Inspected())
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchDebounce, "debounce", 500, "Quiet period in milliseconds before changed files are inspected")
	watchCmd.Flags().IntVar(&watchDuration, "duration", 0, "Stop after this many seconds (0 runs until interrupted)")
}
