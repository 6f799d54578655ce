package signatures

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// defaultSignatures is the built-in list used when no signature file is usable.
var defaultSignatures = []string{
	"malicious_payload",
	"trojan",
	"virus",
	"ransomware",
	"backdoor",
	"keylogger",
	"spyware",
	"adware",
	"worm",
	"rootkit",
	"exploit",
	"malware",
}

var defaultBlacklist = []string{
	"192.168.1.100",
	"10.0.0.50",
	"203.0.113.5",
}

var suspiciousExtensions = []string{
	".exe", ".dll", ".bat", ".cmd", ".vbs",
	".js", ".ps1", ".sh", ".msi", ".scr",
}

var suspiciousSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(suspiciousExtensions))
	for _, ext := range suspiciousExtensions {
		m[ext] = struct{}{}
	}
	return m
}()

// Defaults returns a copy of the built-in signature list.
func Defaults() []string {
	return append([]string(nil), defaultSignatures...)
}

// DefaultBlacklist returns a copy of the built-in IP blacklist.
func DefaultBlacklist() []string {
	return append([]string(nil), defaultBlacklist...)
}

// SuspiciousExtensions returns the extensions flagged regardless of content.
func SuspiciousExtensions() []string {
	return append([]string(nil), suspiciousExtensions...)
}

// IsSuspiciousExtension reports whether ext (with its leading dot) is in the
// suspicious set. The comparison is case-insensitive.
func IsSuspiciousExtension(ext string) bool {
	_, ok := suspiciousSet[strings.ToLower(ext)]
	return ok
}

// Load reads a signature file. A missing, unreadable or empty file yields
// the built-in defaults.
func Load(fs afero.Fs, path string) []string {
	sigs, _ := LoadList(fs, path, defaultSignatures)
	return sigs
}

// LoadBlacklist reads a blacklist file with the same rules as Load.
func LoadBlacklist(fs afero.Fs, path string) []string {
	ips, _ := LoadList(fs, path, defaultBlacklist)
	return ips
}

// LoadList reads one entry per line from path, trimming whitespace and
// skipping blank lines. File order and duplicates are kept. When nothing
// usable is found a copy of defaults is returned and usedDefault is true.
func LoadList(fs afero.Fs, path string, defaults []string) (list []string, usedDefault bool) {
	if path != "" {
		data, err := afero.ReadFile(fs, filepath.Clean(path))
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("list file unavailable, using defaults")
		} else {
			list = parseLines(data)
		}
	}

	if len(list) == 0 {
		return append([]string(nil), defaults...), true
	}
	return list, false
}

func parseLines(data []byte) []string {
	text := strings.ToValidUTF8(string(data), "")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
