package cli

import (
	"testing"
	"time"

	"github.com/lu-zhengda/avscan/internal/history"
	"github.com/lu-zhengda/avscan/internal/netmon"
	"github.com/lu-zhengda/avscan/internal/scancache"
	"github.com/lu-zhengda/avscan/internal/scanner"
	"github.com/lu-zhengda/avscan/internal/store"
)

func sampleSummary() scanner.Summary {
	return scanner.Summary{
		ID:           "3f1c2a7e-0000-0000-0000-000000000000",
		Root:         "/tmp/scan",
		FilesScanned: 3,
		Elapsed:      1500 * time.Millisecond,
		Findings: []scanner.Finding{
			{Path: "/tmp/scan/a.exe", Reasons: []string{scanner.SuspiciousTypeReason(".exe")}},
			{Path: "/tmp/scan/b.txt", Reasons: []string{scanner.SignatureReason("trojan")}},
		},
	}
}

func TestBuildScanJSON(t *testing.T) {
	result := buildScanJSON(sampleSummary(), nil, "/tmp/report.txt")

	if result.Version != version {
		t.Errorf("Version = %q, want %q", result.Version, version)
	}
	if result.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if result.FilesScanned != 3 {
		t.Errorf("FilesScanned = %d, want 3", result.FilesScanned)
	}
	if result.ThreatCount != 2 {
		t.Errorf("ThreatCount = %d, want 2", result.ThreatCount)
	}
	if result.ElapsedSeconds != 1.5 {
		t.Errorf("ElapsedSeconds = %v, want 1.5", result.ElapsedSeconds)
	}
	if result.ReportPath != "/tmp/report.txt" {
		t.Errorf("ReportPath = %q", result.ReportPath)
	}
	if len(result.Findings) != 2 {
		t.Fatalf("len(Findings) = %d, want 2", len(result.Findings))
	}
	if result.Findings[0].Risk != "Moderate" || result.Findings[1].Risk != "Risky" {
		t.Errorf("risks = %q, %q, want Moderate, Risky", result.Findings[0].Risk, result.Findings[1].Risk)
	}
	if result.RiskSummary.Moderate != 1 || result.RiskSummary.Risky != 1 {
		t.Errorf("RiskSummary = %+v, want 1 moderate and 1 risky", result.RiskSummary)
	}
	if result.Diff != nil {
		t.Error("Diff should be nil when no diff passed")
	}
}

func TestBuildScanJSON_CleanScanHasEmptyFindings(t *testing.T) {
	result := buildScanJSON(scanner.Summary{Root: "/tmp/clean", FilesScanned: 4}, nil, "")

	if result.Findings == nil {
		t.Error("Findings should be an empty slice, not nil")
	}
	if result.ThreatCount != 0 {
		t.Errorf("ThreatCount = %d, want 0", result.ThreatCount)
	}
}

func TestBuildScanJSON_WithDiff(t *testing.T) {
	prev := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	diff := &scancache.DiffResult{
		PreviousTimestamp: prev,
		New:               []string{"/tmp/scan/b.txt"},
		Resolved:          []string{"/tmp/scan/old.exe"},
		Persisting:        1,
	}

	result := buildScanJSON(sampleSummary(), diff, "")

	if result.Diff == nil {
		t.Fatal("Diff should not be nil")
	}
	if !result.Diff.PreviousTimestamp.Equal(prev) {
		t.Errorf("Diff.PreviousTimestamp = %v, want %v", result.Diff.PreviousTimestamp, prev)
	}
	if len(result.Diff.New) != 1 || len(result.Diff.Resolved) != 1 || result.Diff.Persisting != 1 {
		t.Errorf("Diff = %+v", result.Diff)
	}
}

func TestBuildHistoryJSON(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.Local)
	lines := []string{
		history.FormatEntry(base, "/a", 10, 0),
		"not a history line",
		history.FormatEntry(base.Add(time.Hour), "/b", 5, 2),
	}

	result := buildHistoryJSON(lines, true, lines)

	if len(result.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(result.Entries))
	}
	if result.Entries[0].Root != "/b" {
		t.Errorf("Entries[0].Root = %q, want newest first (/b)", result.Entries[0].Root)
	}
	if result.Stats == nil {
		t.Fatal("Stats should be set")
	}
	if result.Stats.TotalScans != 2 {
		t.Errorf("Stats.TotalScans = %d, want 2", result.Stats.TotalScans)
	}
	if result.Stats.Unparsed != 1 {
		t.Errorf("Stats.Unparsed = %d, want 1", result.Stats.Unparsed)
	}
}

func TestBuildHistoryJSON_NoStats(t *testing.T) {
	result := buildHistoryJSON(nil, false, nil)

	if result.Entries == nil {
		t.Error("Entries should be an empty slice, not nil")
	}
	if result.Stats != nil {
		t.Error("Stats should be nil without --stats")
	}
}

func TestBuildFindingsJSON(t *testing.T) {
	records := []store.ScanRecord{
		{
			ScanID:       "abc",
			Root:         "/tmp/scan",
			FilesScanned: 3,
			ThreatCount:  1,
			ElapsedMS:    250,
			Findings: []store.FindingRecord{
				{Path: "/tmp/scan/a.exe", Risk: "Moderate", Reasons: []byte(`["Suspicious file type: .exe"]`)},
			},
		},
		{ScanID: "def", Root: "/tmp/other"},
	}

	result := buildFindingsJSON(records)

	if len(result.Scans) != 2 {
		t.Fatalf("len(Scans) = %d, want 2", len(result.Scans))
	}
	first := result.Scans[0]
	if first.ID != "abc" || first.ElapsedMS != 250 {
		t.Errorf("first scan = %+v", first)
	}
	if len(first.Findings) != 1 || first.Findings[0].Reasons[0] != "Suspicious file type: .exe" {
		t.Errorf("first scan findings = %+v", first.Findings)
	}
	if result.Scans[1].Findings != nil {
		t.Errorf("scan without loaded findings should omit them, got %+v", result.Scans[1].Findings)
	}
}

func TestBuildMonitorJSON(t *testing.T) {
	stats := netmon.Stats{Connections: 5, Suspicious: 1, Blocked: 2}
	alerts := []netmon.Event{
		{Kind: netmon.KindBlocked, IP: "10.0.0.50", Port: 22, Reasons: []string{"Blacklisted IP"}},
	}

	result := buildMonitorJSON(stats, alerts)

	if result.Connections != 5 || result.Suspicious != 1 || result.Blocked != 2 {
		t.Errorf("counts = %d/%d/%d, want 5/1/2", result.Connections, result.Suspicious, result.Blocked)
	}
	if len(result.Alerts) != 1 || result.Alerts[0].Kind != "blocked" {
		t.Errorf("Alerts = %+v", result.Alerts)
	}
}
