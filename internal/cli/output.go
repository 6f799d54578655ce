package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lu-zhengda/avscan/internal/scancache"
	"github.com/lu-zhengda/avscan/internal/scanner"
)

func printScanResults(summary scanner.Summary, diff *scancache.DiffResult, reportPath string) {
	fmt.Printf("\nScan of %s\n", summary.Root)
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("  Files scanned:    %d\n", summary.FilesScanned)
	fmt.Printf("  Threats detected: %d\n", summary.FindingsCount())
	fmt.Printf("  Duration:         %.2f seconds\n", summary.Elapsed.Seconds())
	if summary.Cancelled {
		fmt.Println("  Status:           cancelled before completion")
	}

	if summary.FindingsCount() == 0 {
		fmt.Println("\nNo threats found.")
	} else {
		fmt.Println()
		for _, f := range summary.Findings {
			printFinding(f)
		}
		if line := riskSummaryLine(riskSummary(summary.Findings)); line != "" {
			fmt.Printf("\n%s\n", line)
		}
	}

	if diff != nil && diff.Changed() {
		fmt.Printf("\nSince last scan (%s): %d new, %d resolved, %d persisting\n",
			diff.PreviousTimestamp.Local().Format("2006-01-02 15:04"),
			len(diff.New), len(diff.Resolved), diff.Persisting)
		for _, p := range diff.New {
			fmt.Printf("  + %s\n", truncatePath(p, 70))
		}
		for _, p := range diff.Resolved {
			fmt.Printf("  - %s\n", truncatePath(p, 70))
		}
	}

	if reportPath != "" {
		fmt.Printf("\nReport saved to %s\n", reportPath)
	}
}

func printFinding(f scanner.Finding) {
	fmt.Printf("  %-60s [%s]\n", truncatePath(f.Path, 60), f.Risk())
	for _, r := range f.Reasons {
		fmt.Printf("      - %s\n", r)
	}
}

func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}

func confirmAction(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var response string
	fmt.Scanln(&response)
	return strings.ToLower(strings.TrimSpace(response)) == "y"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
