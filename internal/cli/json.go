package cli

import (
	"time"

	"github.com/lu-zhengda/avscan/internal/history"
	"github.com/lu-zhengda/avscan/internal/netmon"
	"github.com/lu-zhengda/avscan/internal/quarantine"
	"github.com/lu-zhengda/avscan/internal/scancache"
	"github.com/lu-zhengda/avscan/internal/scanner"
	"github.com/lu-zhengda/avscan/internal/store"
)

// ---------------------------------------------------------------------------
// Scan JSON types
// ---------------------------------------------------------------------------

type scanJSON struct {
	Version        string        `json:"version"`
	Timestamp      time.Time     `json:"timestamp"`
	ID             string        `json:"id"`
	Root           string        `json:"root"`
	FilesScanned   int           `json:"files_scanned"`
	ThreatCount    int           `json:"threat_count"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	Cancelled      bool          `json:"cancelled"`
	Findings       []findingJSON `json:"findings"`
	RiskSummary    riskJSON      `json:"risk_summary"`
	ReportPath     string        `json:"report_path,omitempty"`
	Diff           *diffJSON     `json:"diff,omitempty"`
}

type findingJSON struct {
	Path    string   `json:"path"`
	Risk    string   `json:"risk"`
	Reasons []string `json:"reasons"`
}

type riskJSON struct {
	Moderate int `json:"moderate"`
	Risky    int `json:"risky"`
}

type diffJSON struct {
	PreviousTimestamp time.Time `json:"previous_timestamp"`
	New               []string  `json:"new"`
	Resolved          []string  `json:"resolved"`
	Persisting        int       `json:"persisting"`
}

func toFindingsJSON(findings []scanner.Finding) []findingJSON {
	out := make([]findingJSON, 0, len(findings))
	for _, f := range findings {
		out = append(out, findingJSON{Path: f.Path, Risk: f.Risk().String(), Reasons: f.Reasons})
	}
	return out
}

// buildScanJSON flattens a scan summary into a JSON-serializable structure.
func buildScanJSON(summary scanner.Summary, diff *scancache.DiffResult, reportPath string) scanJSON {
	rb := riskSummary(summary.Findings)

	result := scanJSON{
		Version:        version,
		Timestamp:      time.Now().UTC(),
		ID:             summary.ID,
		Root:           summary.Root,
		FilesScanned:   summary.FilesScanned,
		ThreatCount:    summary.FindingsCount(),
		ElapsedSeconds: summary.Elapsed.Seconds(),
		Cancelled:      summary.Cancelled,
		Findings:       toFindingsJSON(summary.Findings),
		RiskSummary:    riskJSON{Moderate: rb.Moderate, Risky: rb.Risky},
		ReportPath:     reportPath,
	}

	if diff != nil {
		result.Diff = &diffJSON{
			PreviousTimestamp: diff.PreviousTimestamp,
			New:               diff.New,
			Resolved:          diff.Resolved,
			Persisting:        diff.Persisting,
		}
	}

	return result
}

// ---------------------------------------------------------------------------
// History JSON types
// ---------------------------------------------------------------------------

type historyJSON struct {
	Version string         `json:"version"`
	Entries []history.Entry `json:"entries"`
	Stats   *history.Stats  `json:"stats,omitempty"`
}

// buildHistoryJSON parses the displayed lines newest first. Lines that do
// not parse are skipped.
func buildHistoryJSON(lines []string, withStats bool, all []string) historyJSON {
	result := historyJSON{Version: version, Entries: []history.Entry{}}
	for i := len(lines) - 1; i >= 0; i-- {
		e, err := history.Parse(lines[i])
		if err != nil {
			continue
		}
		result.Entries = append(result.Entries, e)
	}
	if withStats {
		stats := history.Summarize(all)
		result.Stats = &stats
	}
	return result
}

// ---------------------------------------------------------------------------
// Status JSON type
// ---------------------------------------------------------------------------

type listStatusJSON struct {
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	Entries int    `json:"entries"`
	Builtin bool   `json:"builtin"`
}

type statusJSON struct {
	Version           string         `json:"version"`
	ConfigPath        string         `json:"config_path"`
	Signatures        listStatusJSON `json:"signatures"`
	Blacklist         listStatusJSON `json:"blacklist"`
	LastScanPath      string         `json:"last_scan_path"`
	LastScan          string         `json:"last_scan,omitempty"`
	TotalScans        int            `json:"total_scans"`
	AutoScan          bool           `json:"auto_scan"`
	NetworkMonitoring bool           `json:"network_monitoring"`
	Quarantined       int            `json:"quarantined"`
}

// ---------------------------------------------------------------------------
// Findings JSON types
// ---------------------------------------------------------------------------

type scanRecordJSON struct {
	ID           string        `json:"id"`
	Root         string        `json:"root"`
	StartedAt    time.Time     `json:"started_at"`
	FilesScanned int           `json:"files_scanned"`
	ThreatCount  int           `json:"threat_count"`
	ElapsedMS    int64         `json:"elapsed_ms"`
	Cancelled    bool          `json:"cancelled"`
	Findings     []findingJSON `json:"findings,omitempty"`
}

func buildScanRecordJSON(rec store.ScanRecord) scanRecordJSON {
	out := scanRecordJSON{
		ID:           rec.ScanID,
		Root:         rec.Root,
		StartedAt:    rec.StartedAt,
		FilesScanned: rec.FilesScanned,
		ThreatCount:  rec.ThreatCount,
		ElapsedMS:    rec.ElapsedMS,
		Cancelled:    rec.Cancelled,
	}
	if len(rec.Findings) > 0 {
		findings := make([]scanner.Finding, 0, len(rec.Findings))
		for _, fr := range rec.Findings {
			findings = append(findings, fr.Finding())
		}
		out.Findings = toFindingsJSON(findings)
	}
	return out
}

type findingsJSON struct {
	Version string           `json:"version"`
	Scans   []scanRecordJSON `json:"scans"`
}

func buildFindingsJSON(records []store.ScanRecord) findingsJSON {
	result := findingsJSON{Version: version, Scans: make([]scanRecordJSON, 0, len(records))}
	for _, rec := range records {
		result.Scans = append(result.Scans, buildScanRecordJSON(rec))
	}
	return result
}

// ---------------------------------------------------------------------------
// Quarantine JSON type
// ---------------------------------------------------------------------------

type quarantineJSON struct {
	Version string              `json:"version"`
	Dir     string              `json:"dir"`
	Records []quarantine.Record `json:"records"`
}

// ---------------------------------------------------------------------------
// Monitor JSON type
// ---------------------------------------------------------------------------

type monitorEventJSON struct {
	Kind    string    `json:"kind"`
	IP      string    `json:"ip"`
	Port    int       `json:"port"`
	Reasons []string  `json:"reasons,omitempty"`
	At      time.Time `json:"at"`
}

type monitorJSON struct {
	Version     string             `json:"version"`
	Connections int                `json:"connections"`
	Suspicious  int                `json:"suspicious"`
	Blocked     int                `json:"blocked"`
	Alerts      []monitorEventJSON `json:"alerts"`
}

func buildMonitorJSON(stats netmon.Stats, alerts []netmon.Event) monitorJSON {
	result := monitorJSON{
		Version:     version,
		Connections: stats.Connections,
		Suspicious:  stats.Suspicious,
		Blocked:     stats.Blocked,
		Alerts:      make([]monitorEventJSON, 0, len(alerts)),
	}
	for _, ev := range alerts {
		result.Alerts = append(result.Alerts, monitorEventJSON{
			Kind:    ev.Kind.String(),
			IP:      ev.IP,
			Port:    ev.Port,
			Reasons: ev.Reasons,
			At:      ev.At,
		})
	}
	return result
}
