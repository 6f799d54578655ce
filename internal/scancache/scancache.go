package scancache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

// ErrNoSnapshot is returned by Load when no scan of the root was recorded.
var ErrNoSnapshot = errors.New("no previous scan for root")

// Snapshot captures the threats found by one scan of a root.
type Snapshot struct {
	Timestamp    time.Time           `json:"timestamp"`
	Root         string              `json:"root"`
	FilesScanned int                 `json:"files_scanned"`
	Threats      map[string][]string `json:"threats"`
}

// DiffResult describes how the threats under a root changed between two
// snapshots.
type DiffResult struct {
	PreviousTimestamp time.Time `json:"previous_timestamp"`
	New               []string  `json:"new"`
	Resolved          []string  `json:"resolved"`
	Persisting        int       `json:"persisting"`
}

// Changed reports whether any threat appeared or disappeared.
func (d DiffResult) Changed() bool {
	return len(d.New) > 0 || len(d.Resolved) > 0
}

// DefaultPath returns the default scan cache file location under dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "last-scan.json")
}

// FromSummary builds a snapshot from a completed scan.
func FromSummary(summary scanner.Summary, ts time.Time) Snapshot {
	snap := Snapshot{
		Timestamp:    ts,
		Root:         summary.Root,
		FilesScanned: summary.FilesScanned,
		Threats:      make(map[string][]string, len(summary.Findings)),
	}
	for _, f := range summary.Findings {
		snap.Threats[f.Path] = append([]string(nil), f.Reasons...)
	}
	return snap
}

func readAll(path string) (map[string]Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scan cache file")
	}

	snaps := make(map[string]Snapshot)
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, errors.Wrap(err, "failed to parse scan cache file")
	}
	return snaps, nil
}

// Save stores snap as the latest scan of its root, keeping the snapshots of
// other roots. An unreadable cache file is replaced.
func Save(path string, snap Snapshot) error {
	snaps, err := readAll(path)
	if err != nil {
		snaps = make(map[string]Snapshot)
	}
	snaps[snap.Root] = snap

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create scan cache directory")
	}

	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal scan snapshot")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scan cache file")
	}

	return nil
}

// Load reads the latest snapshot of root.
func Load(path, root string) (Snapshot, error) {
	snaps, err := readAll(path)
	if err != nil {
		return Snapshot{}, err
	}

	snap, ok := snaps[root]
	if !ok {
		return Snapshot{}, errors.Wrapf(ErrNoSnapshot, "%s", root)
	}
	return snap, nil
}

// Diff lists threats present in curr but not prev (New) and in prev but not
// curr (Resolved), both sorted by path.
func Diff(prev, curr Snapshot) DiffResult {
	result := DiffResult{PreviousTimestamp: prev.Timestamp}

	for path := range curr.Threats {
		if _, existed := prev.Threats[path]; existed {
			result.Persisting++
			continue
		}
		result.New = append(result.New, path)
	}
	for path := range prev.Threats {
		if _, still := curr.Threats[path]; !still {
			result.Resolved = append(result.Resolved, path)
		}
	}

	sort.Strings(result.New)
	sort.Strings(result.Resolved)
	return result
}
