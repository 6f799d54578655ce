package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/avscan/internal/store"
	"github.com/lu-zhengda/avscan/internal/utils"
)

var (
	findingsLimit int
	findingsPath  string
)

var findingsCmd = &cobra.Command{
	Use:   "findings [scan-id]",
	Short: "Browse stored scans and their findings",
	Long:  "Without arguments, list recent scans from the findings database.\nWith a scan ID (or a unique prefix of one), show that scan's findings.\nWith --path, show every stored finding for one file.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(utils.ExpandHome(currentConfig().DatabasePath))
		if err != nil {
			return fmt.Errorf("failed to open findings database: %w", err)
		}
		defer db.Close()

		switch {
		case findingsPath != "":
			return showPathFindings(db, utils.ResolvePath(findingsPath))
		case len(args) == 1:
			return showScanFindings(db, args[0])
		default:
			return listScans(db, findingsLimit)
		}
	},
}

func listScans(db *store.Store, limit int) error {
	scans, err := db.Recent(limit)
	if err != nil {
		return err
	}

	if jsonFlag {
		return printJSON(buildFindingsJSON(scans))
	}

	fmt.Println("avscan -- Stored Scans")
	fmt.Println()
	if len(scans) == 0 {
		fmt.Println("  No scans stored yet. Run 'avscan scan <path>' to get started.")
		fmt.Println()
		return nil
	}
	for _, s := range scans {
		status := ""
		if s.Cancelled {
			status = " (cancelled)"
		}
		fmt.Printf("  %s  %s  %-36s %6d files  %3d threats%s\n",
			shortID(s.ScanID),
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			truncatePath(s.Root, 36),
			s.FilesScanned,
			s.ThreatCount,
			status)
	}
	fmt.Println()
	return nil
}

func showScanFindings(db *store.Store, id string) error {
	rec, err := db.Scan(id)
	if err != nil {
		return err
	}

	if jsonFlag {
		return printJSON(buildScanRecordJSON(*rec))
	}

	fmt.Printf("Scan %s of %s\n", rec.ScanID, rec.Root)
	fmt.Printf("  Started:  %s\n", rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Files:    %d\n", rec.FilesScanned)
	fmt.Printf("  Duration: %s\n", (time.Duration(rec.ElapsedMS) * time.Millisecond).Round(time.Millisecond))
	fmt.Println()
	if len(rec.Findings) == 0 {
		fmt.Println("  No threats found.")
		return nil
	}
	for _, fr := range rec.Findings {
		printFinding(fr.Finding())
	}
	return nil
}

func showPathFindings(db *store.Store, path string) error {
	records, err := db.PathHistory(path)
	if err != nil {
		return err
	}

	if jsonFlag {
		out := make([]findingJSON, 0, len(records))
		for _, fr := range records {
			f := fr.Finding()
			out = append(out, findingJSON{Path: f.Path, Risk: f.Risk().String(), Reasons: f.Reasons})
		}
		return printJSON(out)
	}

	if len(records) == 0 {
		fmt.Printf("No stored findings for %s\n", path)
		return nil
	}
	fmt.Printf("%s was flagged in %d scan(s)\n", path, len(records))
	for _, fr := range records {
		fmt.Printf("  %s  %s\n", fr.CreatedAt.Local().Format("2006-01-02 15:04"), fr.Finding().Risk())
	}
	return nil
}

// shortID returns the first block of a UUID, enough to pass back as a prefix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	findingsCmd.Flags().IntVarP(&findingsLimit, "limit", "n", 20, "Number of scans to list (0 lists all)")
	findingsCmd.Flags().StringVar(&findingsPath, "path", "", "Show stored findings for one file")
}
