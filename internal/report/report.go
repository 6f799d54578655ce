package report

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

// ErrReportWriteFailed is returned when the report artifact could not be
// written. The scan results themselves are unaffected.
var ErrReportWriteFailed = errors.New("report write failed")

var rule = strings.Repeat("=", 70)

var recommendations = []string{
	"Review all detected threats carefully",
	"Quarantine or delete suspicious files",
	"Update virus signatures regularly",
	"Run full system scan periodically",
}

// Writer renders scan summaries to a text file.
type Writer struct {
	fs   afero.Fs
	path string
	now  func() time.Time
}

// NewWriter returns a Writer that writes to path on fs.
func NewWriter(fs afero.Fs, path string) *Writer {
	return &Writer{fs: fs, path: path, now: time.Now}
}

// Path returns the report destination.
func (w *Writer) Path() string {
	return w.path
}

// Write renders summary to the report file and returns its path. A summary
// without findings produces no file and an empty path.
func (w *Writer) Write(summary scanner.Summary) (string, error) {
	if len(summary.Findings) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := Render(&buf, summary, w.now()); err != nil {
		return "", errors.Wrapf(ErrReportWriteFailed, "render: %v", err)
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(ErrReportWriteFailed, "%s: %v", w.path, err)
		}
	}
	if err := afero.WriteFile(w.fs, w.path, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrapf(ErrReportWriteFailed, "%s: %v", w.path, err)
	}

	log.Debug().Str("path", w.path).Int("findings", len(summary.Findings)).Msg("report written")
	return w.path, nil
}

// Render writes the plain-text report for summary, dated ts.
func Render(out io.Writer, summary scanner.Summary, ts time.Time) error {
	var b strings.Builder

	b.WriteString(rule + "\n")
	b.WriteString("  AVSCAN THREAT REPORT\n")
	b.WriteString("  Folder Scan Report\n")
	b.WriteString(rule + "\n\n")

	fmt.Fprintf(&b, "Scan Date: %s\n", ts.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Target Folder: %s\n", summary.Root)
	fmt.Fprintf(&b, "Files Scanned: %d\n", summary.FilesScanned)
	fmt.Fprintf(&b, "Threats Detected: %d\n", summary.FindingsCount())
	fmt.Fprintf(&b, "Scan Duration: %.2f seconds\n", summary.Elapsed.Seconds())
	if summary.Cancelled {
		b.WriteString("Status: cancelled before completion\n")
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("  THREATS DETECTED\n")
	b.WriteString(rule + "\n\n")

	for i, f := range summary.Findings {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.Path)
		for _, reason := range f.Reasons {
			fmt.Fprintf(&b, "   - %s\n", reason)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule + "\n")
	b.WriteString("  RECOMMENDATIONS\n")
	b.WriteString(rule + "\n")
	for i, r := range recommendations {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\n" + rule + "\n")

	_, err := io.WriteString(out, b.String())
	return err
}
