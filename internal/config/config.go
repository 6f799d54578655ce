package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lu-zhengda/avscan/internal/history"
	"github.com/lu-zhengda/avscan/internal/scanner"
)

// Config holds all avscan configuration and the scan history log.
type Config struct {
	LastScanPath      string   `json:"last_scan_path" yaml:"last_scan_path"`
	ScanHistory       []string `json:"scan_history" yaml:"scan_history"`
	SignaturePath     string   `json:"signature_path" yaml:"signature_path"`
	BlacklistPath     string   `json:"blacklist_path" yaml:"blacklist_path"`
	ReportPath        string   `json:"report_path" yaml:"report_path"`
	AutoScan          bool     `json:"auto_scan" yaml:"auto_scan"`
	NetworkMonitoring bool     `json:"network_monitoring" yaml:"network_monitoring"`

	Exclude       []string `json:"exclude" yaml:"exclude"`
	MaxFileSize   string   `json:"max_file_size" yaml:"max_file_size"`
	Workers       int      `json:"workers" yaml:"workers"`
	DatabasePath  string   `json:"database_path" yaml:"database_path"`
	QuarantineDir string   `json:"quarantine_dir" yaml:"quarantine_dir"`
}

// Dir returns the avscan configuration directory under home.
func Dir(home string) string {
	return filepath.Join(home, ".config", "avscan")
}

// DefaultPath returns the default config file location under home.
func DefaultPath(home string) string {
	return filepath.Join(Dir(home), "config.json")
}

// Default returns a Config with all default values populated. Data files
// live next to the config file; the last scan path is home itself.
func Default(home string) *Config {
	dir := Dir(home)
	return &Config{
		LastScanPath:      home,
		ScanHistory:       []string{},
		SignaturePath:     filepath.Join(dir, "malware_signatures.txt"),
		BlacklistPath:     filepath.Join(dir, "blacklisted_ips.txt"),
		ReportPath:        filepath.Join(dir, "threat_report.txt"),
		AutoScan:          false,
		NetworkMonitoring: false,
		Exclude:           []string{},
		MaxFileSize:       "10MB",
		Workers:           1,
		DatabasePath:      filepath.Join(dir, "avscan.db"),
		QuarantineDir:     filepath.Join(dir, "quarantine"),
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Load loads config from the given path, or from the default location when
// path is empty. The returned config is never nil: a missing file is
// replaced by defaults which are saved immediately, and a corrupt or
// unreadable file yields defaults together with the error that caused it.
func Load(path string) (*Config, error) {
	home := homeDir()
	if path == "" {
		path = DefaultPath(home)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default(home)
		if err := cfg.Save(path); err != nil {
			return cfg, errors.Wrap(err, "failed to create default config")
		}
		return cfg, nil
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		return Default(home), err
	}
	return cfg, nil
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg := Default(homeDir())
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if cfg.ScanHistory == nil {
		cfg.ScanHistory = []string{}
	}
	if cfg.Exclude == nil {
		cfg.Exclude = []string{}
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (c *Config) marshal(path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(c)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the config to path, creating parent directories as needed.
// The file is replaced atomically: readers see either the old or the new
// content, never a partial write.
func (c *Config) Save(path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := c.marshal(path)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp config file")
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write config file")
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to sync config file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close config file")
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return errors.Wrap(err, "failed to set config file mode")
	}
	if err = os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "failed to replace config file")
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.ScanHistory = append([]string{}, c.ScanHistory...)
	out.Exclude = append([]string{}, c.Exclude...)
	return &out
}

// Update applies fn to a copy of c and saves it to path. c is changed only
// when the save succeeds.
func (c *Config) Update(path string, fn func(*Config)) error {
	next := c.Clone()
	fn(next)
	if err := next.Save(path); err != nil {
		return err
	}
	*c = *next
	return nil
}

// RecordScan appends a history entry for a completed scan and remembers its
// root as the last scan path.
func (c *Config) RecordScan(path string, summary scanner.Summary, now time.Time) error {
	entry := history.FormatEntry(now, summary.Root, summary.FilesScanned, summary.FindingsCount())
	return c.Update(path, func(next *Config) {
		next.ScanHistory = append(next.ScanHistory, entry)
		next.LastScanPath = summary.Root
	})
}

// MaxFileSizeBytes returns the content-scan cap. An empty or invalid
// max_file_size falls back to the built-in 10 MiB.
func (c *Config) MaxFileSizeBytes() int64 {
	if c.MaxFileSize == "" {
		return scanner.MaxFileSize
	}
	n, err := ParseSize(c.MaxFileSize)
	if err != nil || n <= 0 {
		return scanner.MaxFileSize
	}
	return n
}

// WorkerCount returns the configured worker count, at least one.
func (c *Config) WorkerCount() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}

// Validate reports every problem found in the config.
func (c *Config) Validate() []error {
	var errs []error
	if c.SignaturePath == "" {
		errs = append(errs, errors.New("signature_path is empty"))
	}
	if c.BlacklistPath == "" {
		errs = append(errs, errors.New("blacklist_path is empty"))
	}
	if c.ReportPath == "" {
		errs = append(errs, errors.New("report_path is empty"))
	}
	if c.MaxFileSize != "" {
		if n, err := ParseSize(c.MaxFileSize); err != nil {
			errs = append(errs, errors.Wrap(err, "max_file_size"))
		} else if n == 0 {
			errs = append(errs, errors.New("max_file_size must be greater than zero"))
		}
	}
	if c.Workers < 0 {
		errs = append(errs, errors.Errorf("workers must not be negative, got %d", c.Workers))
	}
	for _, pattern := range c.Exclude {
		if strings.HasSuffix(pattern, "/**") {
			continue
		}
		if _, err := filepath.Match(pattern, ""); err != nil {
			errs = append(errs, errors.Wrapf(err, "invalid exclude pattern %q", pattern))
		}
	}
	return errs
}

type sizeSuffix struct {
	suffix string
	mult   int64
}

var sizeSuffixes = []sizeSuffix{
	{"TB", 1024 * 1024 * 1024 * 1024},
	{"GB", 1024 * 1024 * 1024},
	{"MB", 1024 * 1024},
	{"KB", 1024},
}

// ParseSize parses a human-readable size string like "10MB", "1GB",
// "500KB", "2TB", or a plain number (bytes) into int64 bytes.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("empty size string")
	}

	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)

	for _, ss := range sizeSuffixes {
		if strings.HasSuffix(upper, ss.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(upper, ss.suffix))
			if numStr == "" {
				return 0, errors.Errorf("missing numeric value in %q", s)
			}
			n, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, errors.Wrapf(err, "invalid size %q", s)
			}
			if n < 0 {
				return 0, errors.Errorf("negative size %q", s)
			}
			return n * ss.mult, nil
		}
	}

	// Plain number (bytes).
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", s)
	}
	if n < 0 {
		return 0, errors.Errorf("negative size %q", s)
	}
	return n, nil
}

// IsExcluded checks if the given path matches any of the configured
// exclude glob patterns. Matching is done against the full path and
// against the base name. Patterns ending in "/**" are treated as
// directory prefix matches.
func (c *Config) IsExcluded(path string) bool {
	for _, pattern := range c.Exclude {
		// Handle "dir/**" as a prefix match.
		if strings.HasSuffix(pattern, "/**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if strings.HasPrefix(path, prefix+"/") || path == prefix {
				return true
			}
			continue
		}

		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}
