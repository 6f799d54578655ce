package scanner

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lu-zhengda/avscan/internal/signatures"
)

// FileInspector classifies a single file.
type FileInspector interface {
	Inspect(path string) Finding
}

// Inspector checks a file's extension and, for files within the size cap,
// its content against a signature list. It holds no per-file state and is
// safe for concurrent use.
type Inspector struct {
	matcher *signatures.Matcher
	maxSize int64
}

// NewInspector returns an inspector for sigs using the default size cap.
func NewInspector(sigs []string) *Inspector {
	return &Inspector{matcher: signatures.NewMatcher(sigs), maxSize: MaxFileSize}
}

// SetMaxSize overrides the content-scan cap. Non-positive values are ignored.
func (i *Inspector) SetMaxSize(n int64) {
	if n > 0 {
		i.maxSize = n
	}
}

// MaxSize returns the content-scan cap in bytes.
func (i *Inspector) MaxSize() int64 {
	return i.maxSize
}

// Inspect is a convenience wrapper around NewInspector(sigs).Inspect(path).
func Inspect(path string, sigs []string) Finding {
	return NewInspector(sigs).Inspect(path)
}

// Inspect never fails: any stat, open or read error ends the inspection and
// the reasons gathered up to that point are returned.
func (i *Inspector) Inspect(path string) Finding {
	f := Finding{Path: path}

	if ext := extension(path); ext != "" && signatures.IsSuspiciousExtension(ext) {
		f.Reasons = append(f.Reasons, SuspiciousTypeReason(ext))
	}

	content, ok := i.readBounded(path)
	if !ok {
		return f
	}
	for _, sig := range i.matcher.Match(content) {
		f.Reasons = append(f.Reasons, SignatureReason(sig))
	}
	return f
}

// readBounded returns the file's content when it is a regular file no larger
// than the cap.
func (i *Inspector) readBounded(path string) ([]byte, bool) {
	// Stat before opening: opening a FIFO or device for reading can block.
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() > i.maxSize {
		return nil, false
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer file.Close()

	// Read one byte past the cap so a file that grew after Stat is caught.
	content, err := io.ReadAll(io.LimitReader(file, i.maxSize+1))
	if err != nil || int64(len(content)) > i.maxSize {
		return nil, false
	}
	return content, true
}

// extension returns the lower-cased extension of the base name. Dot-files
// such as ".bashrc" have none.
func extension(path string) string {
	base := filepath.Base(path)
	trimmed := strings.TrimLeft(base, ".")
	ext := filepath.Ext(trimmed)
	return strings.ToLower(ext)
}
