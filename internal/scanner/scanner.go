package scanner

import (
	"strings"
	"time"
)

// MaxFileSize is the default content-scan cap. Larger files are judged by
// extension only.
const MaxFileSize int64 = 10 * 1024 * 1024

const (
	suspiciousTypePrefix = "Suspicious file type: "
	signaturePrefix      = "Malware signature: "
)

type RiskLevel int

const (
	Safe RiskLevel = iota
	Moderate
	Risky
)

func (r RiskLevel) String() string {
	switch r {
	case Safe:
		return "Safe"
	case Moderate:
		return "Moderate"
	case Risky:
		return "Risky"
	default:
		return "Unknown"
	}
}

// Finding lists the reasons a single file was flagged.
type Finding struct {
	Path    string   `json:"path"`
	Reasons []string `json:"reasons"`
}

// IsThreat reports whether the finding carries at least one reason.
func (f Finding) IsThreat() bool {
	return len(f.Reasons) > 0
}

// Risk is Risky when a content signature matched, Moderate when only the
// extension was flagged, and Safe otherwise.
func (f Finding) Risk() RiskLevel {
	risk := Safe
	for _, r := range f.Reasons {
		if strings.HasPrefix(r, signaturePrefix) {
			return Risky
		}
		risk = Moderate
	}
	return risk
}

// Signatures returns the signature names from signature reasons.
func (f Finding) Signatures() []string {
	var out []string
	for _, r := range f.Reasons {
		if name, ok := strings.CutPrefix(r, signaturePrefix); ok {
			out = append(out, name)
		}
	}
	return out
}

// SuspiciousTypeReason formats the extension-based reason.
func SuspiciousTypeReason(ext string) string {
	return suspiciousTypePrefix + ext
}

// SignatureReason formats the content-based reason.
func SignatureReason(sig string) string {
	return signaturePrefix + sig
}

// Summary is the aggregate result of one scan run.
type Summary struct {
	ID           string        `json:"id"`
	Root         string        `json:"root"`
	StartedAt    time.Time     `json:"started_at"`
	FilesScanned int           `json:"files_scanned"`
	Findings     []Finding     `json:"findings"`
	Elapsed      time.Duration `json:"elapsed"`
	Cancelled    bool          `json:"cancelled,omitempty"`
}

// FindingsCount is the number of flagged files.
func (s Summary) FindingsCount() int {
	return len(s.Findings)
}
