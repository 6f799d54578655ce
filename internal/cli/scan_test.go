package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lu-zhengda/avscan/internal/config"
	"github.com/lu-zhengda/avscan/internal/engine"
	"github.com/lu-zhengda/avscan/internal/scancache"
	"github.com/lu-zhengda/avscan/internal/store"
)

// testConfig returns a config whose files all live under a temp directory,
// plus the config file path.
func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	home := t.TempDir()
	cfg := config.Default(home)
	cfgPath := config.DefaultPath(home)
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	return cfg, cfgPath
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func scanTree(t *testing.T, cfg *config.Config, root string) (engine.Event, []engine.Event, error) {
	t.Helper()
	var events []engine.Event
	_, err := newEngine(cfg, 0).Scan(context.Background(), root, func(ev engine.Event) {
		events = append(events, ev)
	})
	if len(events) == 0 {
		t.Fatal("expected at least one event")
	}
	return events[len(events)-1], events, err
}

func TestNewEngine_UsesConfig(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.Workers = 4
	if got := newEngine(cfg, 0).Workers(); got != 4 {
		t.Errorf("Workers() = %d, want 4 from config", got)
	}
	if got := newEngine(cfg, 2).Workers(); got != 2 {
		t.Errorf("Workers() = %d, want 2 from flag", got)
	}
}

func TestNewEngine_ExcludesConfiguredPaths(t *testing.T) {
	cfg, _ := testConfig(t)
	root := writeTree(t, map[string]string{
		"keep/a.exe": "x",
		"skip/b.exe": "x",
	})
	cfg.Exclude = []string{filepath.Join(root, "skip")}

	last, _, err := scanTree(t, cfg, root)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if last.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", last.FilesScanned)
	}
}

func TestRecordScan_ThreeFiles(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	root := writeTree(t, map[string]string{
		"clean.txt": "hello world",
		"tool.exe":  "plain content",
		"note.txt":  "this file carries a trojan marker",
	})

	summary, err := newEngine(cfg, 0).Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if summary.FilesScanned != 3 || summary.FindingsCount() != 2 {
		t.Fatalf("summary = %d files, %d findings, want 3 and 2", summary.FilesScanned, summary.FindingsCount())
	}

	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.Local)
	outcome := recordScan(cfg, cfgPath, summary, scanOptions{}, now)

	if outcome.ReportPath != cfg.ReportPath {
		t.Errorf("ReportPath = %q, want %q", outcome.ReportPath, cfg.ReportPath)
	}
	data, err := os.ReadFile(cfg.ReportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "Threats Detected: 2") {
		t.Errorf("report missing threat count:\n%s", data)
	}

	want := "2025-06-01 09:30:00 - Scanned " + root + " - 3 files, 2 threats"
	if len(cfg.ScanHistory) != 1 || cfg.ScanHistory[0] != want {
		t.Errorf("ScanHistory = %q, want [%q]", cfg.ScanHistory, want)
	}
	saved, err := config.LoadFrom(cfgPath)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if saved.LastScanPath != root || len(saved.ScanHistory) != 1 {
		t.Errorf("saved config = %q, %q", saved.LastScanPath, saved.ScanHistory)
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	defer db.Close()
	rec, err := db.Scan(summary.ID)
	if err != nil {
		t.Fatalf("Scan(%q) error: %v", summary.ID, err)
	}
	if len(rec.Findings) != 2 {
		t.Errorf("stored findings = %d, want 2", len(rec.Findings))
	}

	if outcome.Diff != nil {
		t.Errorf("first scan should have no diff, got %+v", outcome.Diff)
	}
	if _, err := scancache.Load(scancache.DefaultPath(filepath.Dir(cfgPath)), root); err != nil {
		t.Errorf("snapshot not saved: %v", err)
	}
}

func TestRecordScan_DiffAgainstPrevious(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	root := writeTree(t, map[string]string{"a.exe": "x"})

	first, err := newEngine(cfg, 0).Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	recordScan(cfg, cfgPath, first, scanOptions{NoReport: true}, time.Now())

	if err := os.Remove(filepath.Join(root, "a.exe")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.bat"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := newEngine(cfg, 0).Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	outcome := recordScan(cfg, cfgPath, second, scanOptions{NoReport: true}, time.Now())

	if outcome.Diff == nil {
		t.Fatal("expected a diff against the first scan")
	}
	if len(outcome.Diff.New) != 1 || filepath.Base(outcome.Diff.New[0]) != "b.bat" {
		t.Errorf("New = %q, want [b.bat]", outcome.Diff.New)
	}
	if len(outcome.Diff.Resolved) != 1 || filepath.Base(outcome.Diff.Resolved[0]) != "a.exe" {
		t.Errorf("Resolved = %q, want [a.exe]", outcome.Diff.Resolved)
	}
	if len(cfg.ScanHistory) != 2 {
		t.Errorf("ScanHistory has %d entries, want 2", len(cfg.ScanHistory))
	}
}

func TestRecordScan_NoReport(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	root := writeTree(t, map[string]string{"a.exe": "x"})

	summary, err := newEngine(cfg, 0).Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	outcome := recordScan(cfg, cfgPath, summary, scanOptions{NoReport: true}, time.Now())

	if outcome.ReportPath != "" {
		t.Errorf("ReportPath = %q, want empty", outcome.ReportPath)
	}
	if _, err := os.Stat(cfg.ReportPath); !os.IsNotExist(err) {
		t.Errorf("report should not exist, stat err = %v", err)
	}
}

func TestRecordScan_ReportOverride(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	root := writeTree(t, map[string]string{"a.exe": "x"})
	custom := filepath.Join(t.TempDir(), "reports", "custom.txt")

	summary, err := newEngine(cfg, 0).Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	outcome := recordScan(cfg, cfgPath, summary, scanOptions{ReportPath: custom}, time.Now())

	if outcome.ReportPath != custom {
		t.Errorf("ReportPath = %q, want %q", outcome.ReportPath, custom)
	}
	if _, err := os.Stat(custom); err != nil {
		t.Errorf("custom report missing: %v", err)
	}
}

func TestRecordScan_UnwritableReportKeepsHistory(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	root := writeTree(t, map[string]string{"a.exe": "x"})
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, err := newEngine(cfg, 0).Scan(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	outcome := recordScan(cfg, cfgPath, summary, scanOptions{ReportPath: filepath.Join(blocker, "report.txt")}, time.Now())

	if outcome.ReportPath != "" {
		t.Errorf("ReportPath = %q, want empty after failed write", outcome.ReportPath)
	}
	if len(cfg.ScanHistory) != 1 {
		t.Errorf("ScanHistory has %d entries, want 1", len(cfg.ScanHistory))
	}
}

func TestScanMissingRoot_NoHistory(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	missing := filepath.Join(t.TempDir(), "does-not-exist")

	run := newEngine(cfg, 0).Start(context.Background(), missing)
	_, err := followEvents(run, false)
	if !errors.Is(err, engine.ErrPathNotFound) {
		t.Fatalf("err = %v, want ErrPathNotFound", err)
	}

	saved, err := config.LoadFrom(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.ScanHistory) != 0 {
		t.Errorf("ScanHistory = %q, want empty", saved.ScanHistory)
	}
}

func TestFollowEvents_ReturnsSummary(t *testing.T) {
	cfg, _ := testConfig(t)
	root := writeTree(t, map[string]string{"a.exe": "x", "b.txt": "clean"})

	run := newEngine(cfg, 0).Start(context.Background(), root)
	summary, err := followEvents(run, false)
	if err != nil {
		t.Fatalf("followEvents() error: %v", err)
	}
	if summary.FilesScanned != 2 || summary.FindingsCount() != 1 {
		t.Errorf("summary = %d files, %d findings, want 2 and 1", summary.FilesScanned, summary.FindingsCount())
	}
}
