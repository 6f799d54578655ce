package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/avscan/internal/quarantine"
	"github.com/lu-zhengda/avscan/internal/scanner"
	"github.com/lu-zhengda/avscan/internal/utils"
)

var (
	quarantineForce bool
	quarantineTo    string
	quarantineYes   bool
)

func openJail() *quarantine.Jail {
	return quarantine.New(osFs, utils.ExpandHome(currentConfig().QuarantineDir))
}

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Isolate, restore or delete flagged files",
}

var quarantineAddCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Move files into quarantine",
	Long:  "Inspect each file and move it into the quarantine directory in a\nneutralized form. Files that are not flagged are refused unless --force is given.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig()
		inspector := scanner.NewInspector(loadSignatures(cfg))
		inspector.SetMaxSize(cfg.MaxFileSizeBytes())
		jail := openJail()

		var added []quarantine.Record
		for _, arg := range args {
			path := utils.ResolvePath(arg)
			finding := inspector.Inspect(path)
			if !finding.IsThreat() && !quarantineForce {
				return fmt.Errorf("%s is not flagged (use --force to quarantine anyway)", path)
			}
			rec, err := jail.Add(path, finding.Reasons)
			if err != nil {
				return fmt.Errorf("failed to quarantine %s: %w", path, err)
			}
			added = append(added, rec)
			if !jsonFlag {
				fmt.Printf("Quarantined %s (id %s)\n", rec.OriginalPath, shortID(rec.ID))
			}
		}

		if jsonFlag {
			return printJSON(quarantineJSON{Version: version, Dir: jail.Dir(), Records: added})
		}
		return nil
	},
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantined files",
	RunE: func(cmd *cobra.Command, args []string) error {
		jail := openJail()
		records, err := jail.List()
		if err != nil {
			return err
		}

		if jsonFlag {
			return printJSON(quarantineJSON{Version: version, Dir: jail.Dir(), Records: records})
		}

		if len(records) == 0 {
			fmt.Println("Quarantine is empty.")
			return nil
		}

		var total int64
		for _, r := range records {
			total += r.Size
			fmt.Printf("  %s  %s  %-44s %10s\n",
				shortID(r.ID),
				r.QuarantinedAt.Local().Format("2006-01-02 15:04"),
				truncatePath(r.OriginalPath, 44),
				utils.FormatSize(r.Size))
			for _, reason := range r.Reasons {
				fmt.Printf("      - %s\n", reason)
			}
		}
		fmt.Printf("\n%d file(s), %s in %s\n", len(records), utils.FormatSize(total), jail.Dir())
		return nil
	},
}

var quarantineRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a quarantined file to its original location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := ""
		if quarantineTo != "" {
			dest = utils.ResolvePath(quarantineTo)
		}
		restored, err := openJail().Restore(args[0], dest)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored to %s\n", restored)
		return nil
	},
}

var quarantineDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Permanently delete a quarantined file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jail := openJail()
		rec, err := jail.Find(args[0])
		if err != nil {
			return err
		}
		if !quarantineYes && !confirmAction(fmt.Sprintf("Permanently delete %s?", rec.OriginalPath)) {
			fmt.Println("Cancelled.")
			return nil
		}
		if _, err := jail.Delete(rec.ID); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		fmt.Printf("Deleted %s\n", rec.OriginalPath)
		return nil
	},
}

func init() {
	quarantineAddCmd.Flags().BoolVar(&quarantineForce, "force", false, "Quarantine files even when they are not flagged")
	quarantineRestoreCmd.Flags().StringVar(&quarantineTo, "to", "", "Restore to this path instead of the original")
	quarantineDeleteCmd.Flags().BoolVarP(&quarantineYes, "yes", "y", false, "Skip confirmation")
	quarantineCmd.AddCommand(quarantineAddCmd, quarantineListCmd, quarantineRestoreCmd, quarantineDeleteCmd)
}
