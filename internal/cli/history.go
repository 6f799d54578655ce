package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/avscan/internal/history"
)

const historyDefaultLimit = 10

var (
	historyAll   bool
	historyStats bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		all := currentConfig().ScanHistory
		lines := all
		if !historyAll {
			lines = history.Tail(all, historyDefaultLimit)
		}

		if jsonFlag {
			return printJSON(buildHistoryJSON(lines, historyStats, all))
		}

		if len(all) == 0 {
			fmt.Println("No scan history yet. Run 'avscan scan <path>' to get started.")
			return nil
		}

		fmt.Println("avscan -- Scan History")
		fmt.Println()
		for i := len(lines) - 1; i >= 0; i-- {
			fmt.Printf("  %s\n", lines[i])
		}
		if !historyAll && len(all) > len(lines) {
			fmt.Printf("\n  (%d older entries, use --all to show them)\n", len(all)-len(lines))
		}

		if historyStats {
			printHistoryStats(history.Summarize(all))
		}
		fmt.Println()
		return nil
	},
}

func printHistoryStats(stats history.Stats) {
	fmt.Println()
	fmt.Printf("  Total scans:    %d\n", stats.TotalScans)
	fmt.Printf("  Files scanned:  %d\n", stats.TotalFiles)
	fmt.Printf("  Threats found:  %d\n", stats.TotalThreats)
	if stats.Unparsed > 0 {
		fmt.Printf("  Unreadable:     %d\n", stats.Unparsed)
	}

	if len(stats.ByRoot) == 0 {
		return
	}

	type rootEntry struct {
		root  string
		stats history.RootStats
	}
	roots := make([]rootEntry, 0, len(stats.ByRoot))
	for root, rs := range stats.ByRoot {
		roots = append(roots, rootEntry{root: root, stats: rs})
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].stats.Scans != roots[j].stats.Scans {
			return roots[i].stats.Scans > roots[j].stats.Scans
		}
		return roots[i].root < roots[j].root
	})

	fmt.Println()
	fmt.Println("  By Path:")
	for _, r := range roots {
		label := "scans"
		if r.stats.Scans == 1 {
			label = "scan"
		}
		fmt.Printf("    %-40s %3d %-5s  %d threats\n", truncatePath(r.root, 40), r.stats.Scans, label, r.stats.Threats)
	}
}

func init() {
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "Show every entry")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Show aggregate statistics")
}
