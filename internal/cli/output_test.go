package cli

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lu-zhengda/avscan/internal/scancache"
	"github.com/lu-zhengda/avscan/internal/scanner"
)

// captureOutput redirects stdout via os.Pipe and returns whatever was written.
func captureOutput(fn func()) string {
	origStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = origStdout

	data, _ := io.ReadAll(r)
	return string(data)
}

// ---------------------------------------------------------------------------
// truncatePath
// ---------------------------------------------------------------------------

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		maxLen int
		want   string
	}{
		{
			name:   "short path unchanged",
			path:   "/tmp/foo",
			maxLen: 20,
			want:   "/tmp/foo",
		},
		{
			name:   "exact length unchanged",
			path:   "abcdefghij",
			maxLen: 10,
			want:   "abcdefghij",
		},
		{
			name:   "long path truncated",
			path:   "/Users/home/very/long/path/to/file.txt",
			maxLen: 20,
			want:   ".../path/to/file.txt",
		},
		{
			name:   "empty path",
			path:   "",
			maxLen: 10,
			want:   "",
		},
		{
			name:   "maxLen equals 3",
			path:   "abcdef",
			maxLen: 3,
			want:   "...",
		},
		{
			name:   "maxLen equals 4",
			path:   "abcdef",
			maxLen: 4,
			want:   "...f",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncatePath(tt.path, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.path, tt.maxLen, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// printScanResults
// ---------------------------------------------------------------------------

func TestPrintScanResults_Clean(t *testing.T) {
	out := captureOutput(func() {
		printScanResults(scanner.Summary{Root: "/tmp/clean", FilesScanned: 4}, nil, "")
	})
	if !strings.Contains(out, "No threats found") {
		t.Errorf("expected 'No threats found', got %q", out)
	}
	if !strings.Contains(out, "Files scanned:    4") {
		t.Errorf("expected file count, got %q", out)
	}
	if strings.Contains(out, "Report saved") {
		t.Errorf("did not expect a report line for a clean scan, got %q", out)
	}
}

func TestPrintScanResults_Threats(t *testing.T) {
	summary := scanner.Summary{
		Root:         "/tmp/scan",
		FilesScanned: 3,
		Findings: []scanner.Finding{
			{Path: "/tmp/scan/a.exe", Reasons: []string{scanner.SuspiciousTypeReason(".exe")}},
			{Path: "/tmp/scan/b.txt", Reasons: []string{scanner.SignatureReason("trojan")}},
		},
	}

	out := captureOutput(func() {
		printScanResults(summary, nil, "/tmp/threat_report.txt")
	})

	for _, want := range []string{
		"Threats detected: 2",
		"/tmp/scan/a.exe",
		"[Moderate]",
		"- Suspicious file type: .exe",
		"[Risky]",
		"- Malware signature: trojan",
		"Report saved to /tmp/threat_report.txt",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestPrintScanResults_Cancelled(t *testing.T) {
	out := captureOutput(func() {
		printScanResults(scanner.Summary{Root: "/tmp/scan", FilesScanned: 1, Cancelled: true}, nil, "")
	})
	if !strings.Contains(out, "cancelled before completion") {
		t.Errorf("expected cancelled status, got %q", out)
	}
}

func TestPrintScanResults_Diff(t *testing.T) {
	diff := &scancache.DiffResult{
		PreviousTimestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		New:               []string{"/tmp/scan/new.exe"},
		Resolved:          []string{"/tmp/scan/gone.exe"},
	}

	out := captureOutput(func() {
		printScanResults(scanner.Summary{Root: "/tmp/scan"}, diff, "")
	})

	if !strings.Contains(out, "1 new, 1 resolved, 0 persisting") {
		t.Errorf("expected diff counts, got %q", out)
	}
	if !strings.Contains(out, "+ /tmp/scan/new.exe") || !strings.Contains(out, "- /tmp/scan/gone.exe") {
		t.Errorf("expected new and resolved paths, got %q", out)
	}
}

func TestPrintScanResults_UnchangedDiffHidden(t *testing.T) {
	diff := &scancache.DiffResult{Persisting: 2}

	out := captureOutput(func() {
		printScanResults(scanner.Summary{Root: "/tmp/scan"}, diff, "")
	})

	if strings.Contains(out, "Since last scan") {
		t.Errorf("did not expect a diff section when nothing changed, got %q", out)
	}
}
