package history

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// TimeLayout is the timestamp layout used in history lines.
const TimeLayout = "2006-01-02 15:04:05"

// Entry represents a single scan recorded in the history.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Root      string    `json:"root"`
	Files     int       `json:"files"`
	Threats   int       `json:"threats"`
}

// RootStats holds aggregate statistics for a single scan root.
type RootStats struct {
	Scans   int `json:"scans"`
	Threats int `json:"threats"`
}

// Stats holds aggregate scan statistics.
type Stats struct {
	TotalScans   int                  `json:"total_scans"`
	TotalFiles   int                  `json:"total_files"`
	TotalThreats int                  `json:"total_threats"`
	ByRoot       map[string]RootStats `json:"by_root"`
	Recent       []Entry              `json:"recent"`
	Unparsed     int                  `json:"unparsed"`
}

var entryPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) - Scanned (.*) - (\d+) files, (\d+) threats$`)

// FormatEntry renders one history line.
func FormatEntry(ts time.Time, root string, files, threats int) string {
	return fmt.Sprintf("%s - Scanned %s - %d files, %d threats", ts.Format(TimeLayout), root, files, threats)
}

// Parse reads a line produced by FormatEntry. Timestamps are interpreted in
// local time.
func Parse(line string) (Entry, error) {
	m := entryPattern.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, errors.Errorf("unrecognized history line %q", line)
	}

	ts, err := time.ParseInLocation(TimeLayout, m[1], time.Local)
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to parse history timestamp")
	}
	files, err := strconv.Atoi(m[3])
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to parse file count")
	}
	threats, err := strconv.Atoi(m[4])
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to parse threat count")
	}

	return Entry{Timestamp: ts, Root: m[2], Files: files, Threats: threats}, nil
}

// Tail returns the last n lines without modifying lines. n <= 0 returns all
// of them.
func Tail(lines []string, n int) []string {
	if n <= 0 || n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}

// Summarize computes aggregate statistics from history lines. Lines that
// do not parse are counted but otherwise ignored.
func Summarize(lines []string) Stats {
	s := Stats{ByRoot: make(map[string]RootStats)}

	var entries []Entry
	for _, line := range lines {
		e, err := Parse(line)
		if err != nil {
			s.Unparsed++
			continue
		}
		entries = append(entries, e)

		s.TotalScans++
		s.TotalFiles += e.Files
		s.TotalThreats += e.Threats

		rs := s.ByRoot[e.Root]
		rs.Scans++
		rs.Threats += e.Threats
		s.ByRoot[e.Root] = rs
	}

	// Most recent first.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	limit := 5
	if len(entries) < limit {
		limit = len(entries)
	}
	s.Recent = entries[:limit]

	return s
}
