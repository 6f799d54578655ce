package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lu-zhengda/avscan/internal/scanner"
)

// ErrScanNotFound is returned when no stored scan matches an ID.
var ErrScanNotFound = errors.New("scan not found")

// ScanRecord is one completed scan.
type ScanRecord struct {
	gorm.Model

	ScanID       string `gorm:"uniqueIndex"`
	Root         string `gorm:"index"`
	StartedAt    time.Time
	FilesScanned int
	ThreatCount  int
	ElapsedMS    int64
	Cancelled    bool

	Findings []FindingRecord `gorm:"foreignKey:ScanRecordID;constraint:OnDelete:CASCADE"`
}

// FindingRecord is one flagged file within a scan. Reasons are kept as a
// JSON array in their original order.
type FindingRecord struct {
	gorm.Model

	ScanRecordID uint   `gorm:"index"`
	Path         string `gorm:"index"`
	Risk         string
	Reasons      datatypes.JSON
}

// Finding converts the record back to a scanner finding.
func (r FindingRecord) Finding() scanner.Finding {
	f := scanner.Finding{Path: r.Path}
	if len(r.Reasons) > 0 {
		_ = json.Unmarshal(r.Reasons, &f.Reasons)
	}
	return f
}

// Store persists scan results in a SQLite database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", path)
	}

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}
	if err := db.AutoMigrate(&ScanRecord{}, &FindingRecord{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSummary stores a scan and its findings in one transaction.
func (s *Store) SaveSummary(summary scanner.Summary) error {
	rec := ScanRecord{
		ScanID:       summary.ID,
		Root:         summary.Root,
		StartedAt:    summary.StartedAt,
		FilesScanned: summary.FilesScanned,
		ThreatCount:  summary.FindingsCount(),
		ElapsedMS:    summary.Elapsed.Milliseconds(),
		Cancelled:    summary.Cancelled,
	}

	for _, f := range summary.Findings {
		reasons, err := json.Marshal(f.Reasons)
		if err != nil {
			return errors.Wrap(err, "failed to encode reasons")
		}
		rec.Findings = append(rec.Findings, FindingRecord{
			Path:    f.Path,
			Risk:    f.Risk().String(),
			Reasons: datatypes.JSON(reasons),
		})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return errors.Wrap(err, "failed to save scan")
		}
		return nil
	})
}

// Recent returns up to limit scans, newest first.
func (s *Store) Recent(limit int) ([]ScanRecord, error) {
	var scans []ScanRecord
	q := s.db.Order("started_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&scans).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list scans")
	}
	return scans, nil
}

// Scan returns the scan whose ID starts with id, with its findings loaded.
func (s *Store) Scan(id string) (*ScanRecord, error) {
	if id == "" {
		return nil, ErrScanNotFound
	}

	var rec ScanRecord
	err := s.db.
		Preload("Findings", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Where("scan_id LIKE ?", id+"%").
		Order("started_at desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrScanNotFound, "%s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load scan")
	}
	return &rec, nil
}

// PathHistory returns every stored finding for path, newest first.
func (s *Store) PathHistory(path string) ([]FindingRecord, error) {
	var out []FindingRecord
	if err := s.db.Where("path = ?", path).Order("id desc").Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load findings")
	}
	return out, nil
}
