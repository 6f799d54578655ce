package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/lu-zhengda/avscan/internal/config"
	"github.com/lu-zhengda/avscan/internal/history"
	"github.com/lu-zhengda/avscan/internal/quarantine"
	"github.com/lu-zhengda/avscan/internal/signatures"
	"github.com/lu-zhengda/avscan/internal/utils"
)

// diskFree returns the available disk space in bytes for the given path.
func diskFree(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

func listStatus(path string, defaults []string) listStatusJSON {
	path = utils.ExpandHome(path)
	entries, usedDefault := signatures.LoadList(osFs, path, defaults)
	return listStatusJSON{
		Path:    path,
		Exists:  utils.FileExists(path),
		Entries: len(entries),
		Builtin: usedDefault,
	}
}

func buildStatusJSON(cfg *config.Config, cfgPath string) statusJSON {
	result := statusJSON{
		Version:           version,
		ConfigPath:        cfgPath,
		Signatures:        listStatus(cfg.SignaturePath, signatures.Defaults()),
		Blacklist:         listStatus(cfg.BlacklistPath, signatures.DefaultBlacklist()),
		LastScanPath:      cfg.LastScanPath,
		TotalScans:        len(cfg.ScanHistory),
		AutoScan:          cfg.AutoScan,
		NetworkMonitoring: cfg.NetworkMonitoring,
	}
	if last := history.Tail(cfg.ScanHistory, 1); len(last) == 1 {
		result.LastScan = last[0]
	}
	if records, err := quarantine.New(osFs, utils.ExpandHome(cfg.QuarantineDir)).List(); err == nil {
		result.Quarantined = len(records)
	}
	return result
}

func printListStatus(label string, ls listStatusJSON) {
	switch {
	case ls.Builtin && ls.Exists:
		fmt.Printf("  %-14s %s (empty, using %d built-in)\n", label+":", ls.Path, ls.Entries)
	case ls.Builtin:
		fmt.Printf("  %-14s not found, using %d built-in\n", label+":", ls.Entries)
	default:
		fmt.Printf("  %-14s %s (%d entries)\n", label+":", ls.Path, ls.Entries)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show signature databases, settings and the last scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig()
		st := buildStatusJSON(cfg, configPath)

		if jsonFlag {
			return printJSON(st)
		}

		fmt.Println("avscan -- Status")
		fmt.Println()
		fmt.Printf("  %-14s %s\n", "Config:", st.ConfigPath)
		printListStatus("Signatures", st.Signatures)
		printListStatus("Blacklist", st.Blacklist)
		fmt.Printf("  %-14s %s\n", "Auto scan:", onOff(st.AutoScan))
		fmt.Printf("  %-14s %s\n", "Net monitor:", onOff(st.NetworkMonitoring))
		fmt.Printf("  %-14s %d file(s)\n", "Quarantine:", st.Quarantined)
		if free, err := diskFree(utils.HomeDir()); err == nil {
			fmt.Printf("  %-14s %s\n", "Free space:", utils.FormatSize(free))
		}

		fmt.Println()
		if st.LastScan == "" {
			fmt.Println("  No scans yet.")
		} else {
			fmt.Printf("  Last scan: %s\n", st.LastScan)
			fmt.Printf("  Total scans: %d\n", st.TotalScans)
		}
		fmt.Println()
		return nil
	},
}
