package quarantine

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	manifestName = "manifest.json"
	suffix       = ".quarantine"

	// xorKey neutralizes stored files so they cannot be executed in place.
	xorKey = byte(0xAA)
)

var (
	ErrNotFound          = errors.New("quarantine record not found")
	ErrAmbiguousID       = errors.New("quarantine id is ambiguous")
	ErrDestinationExists = errors.New("restore destination already exists")
	ErrNotRegular        = errors.New("only regular files can be quarantined")
)

// Record describes one quarantined file.
type Record struct {
	ID            string    `json:"id"`
	OriginalPath  string    `json:"original_path"`
	StoredName    string    `json:"stored_name"`
	Size          int64     `json:"size"`
	Reasons       []string  `json:"reasons,omitempty"`
	QuarantinedAt time.Time `json:"quarantined_at"`
}

// Jail isolates flagged files in a private directory. Stored copies are
// XOR-encoded and the originals removed; a JSON manifest maps them back.
type Jail struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// New returns a Jail rooted at dir on fs.
func New(fs afero.Fs, dir string) *Jail {
	return &Jail{fs: fs, dir: dir, now: time.Now}
}

// Dir returns the jail directory.
func (j *Jail) Dir() string {
	return j.dir
}

func (j *Jail) ensureDir() error {
	if err := j.fs.MkdirAll(j.dir, 0o700); err != nil {
		return errors.Wrap(err, "failed to create quarantine directory")
	}
	return nil
}

// List returns all records, oldest first. A missing jail has none.
func (j *Jail) List() ([]Record, error) {
	data, err := afero.ReadFile(j.fs, filepath.Join(j.dir, manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, errors.Wrap(err, "failed to read quarantine manifest")
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "failed to parse quarantine manifest")
	}
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].QuarantinedAt.Before(records[b].QuarantinedAt)
	})
	return records, nil
}

func (j *Jail) saveManifest(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal quarantine manifest")
	}

	tmp := filepath.Join(j.dir, manifestName+".tmp")
	if err := afero.WriteFile(j.fs, tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write quarantine manifest")
	}
	if err := j.fs.Rename(tmp, filepath.Join(j.dir, manifestName)); err != nil {
		return errors.Wrap(err, "failed to replace quarantine manifest")
	}
	return nil
}

// Add moves path into the jail and returns its record.
func (j *Jail) Add(path string, reasons []string) (Record, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Record{}, errors.Wrapf(err, "failed to resolve path %s", path)
	}

	info, err := j.fs.Stat(abs)
	if err != nil {
		return Record{}, errors.Wrapf(err, "failed to stat %s", abs)
	}
	if !info.Mode().IsRegular() {
		return Record{}, errors.Wrapf(ErrNotRegular, "%s", abs)
	}

	if err := j.ensureDir(); err != nil {
		return Record{}, err
	}
	records, err := j.List()
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:            uuid.NewString(),
		OriginalPath:  abs,
		Size:          info.Size(),
		Reasons:       append([]string(nil), reasons...),
		QuarantinedAt: j.now(),
	}
	rec.StoredName = rec.ID + suffix
	stored := filepath.Join(j.dir, rec.StoredName)

	if err := j.xorCopy(abs, stored, 0o600); err != nil {
		_ = j.fs.Remove(stored)
		return Record{}, err
	}
	if err := j.fs.Remove(abs); err != nil {
		_ = j.fs.Remove(stored)
		return Record{}, errors.Wrapf(err, "failed to remove original %s", abs)
	}

	if err := j.saveManifest(append(records, rec)); err != nil {
		return Record{}, err
	}

	log.Info().Str("path", abs).Str("id", rec.ID).Msg("file quarantined")
	return rec, nil
}

// Find returns the record whose ID starts with id.
func (j *Jail) Find(id string) (Record, error) {
	records, err := j.List()
	if err != nil {
		return Record{}, err
	}
	idx, err := match(records, id)
	if err != nil {
		return Record{}, err
	}
	return records[idx], nil
}

func match(records []Record, id string) (int, error) {
	if id == "" {
		return -1, ErrNotFound
	}
	found := -1
	for i, r := range records {
		if r.ID == id {
			return i, nil
		}
		if strings.HasPrefix(r.ID, id) {
			if found >= 0 {
				return -1, errors.Wrapf(ErrAmbiguousID, "%s", id)
			}
			found = i
		}
	}
	if found < 0 {
		return -1, errors.Wrapf(ErrNotFound, "%s", id)
	}
	return found, nil
}

// Restore decodes a quarantined file back to dest, or to its original path
// when dest is empty, and drops it from the jail. An existing destination
// is never overwritten.
func (j *Jail) Restore(id, dest string) (string, error) {
	records, err := j.List()
	if err != nil {
		return "", err
	}
	idx, err := match(records, id)
	if err != nil {
		return "", err
	}
	rec := records[idx]

	if dest == "" {
		dest = rec.OriginalPath
	}
	if _, err := j.fs.Stat(dest); err == nil {
		return "", errors.Wrapf(ErrDestinationExists, "%s", dest)
	}
	if err := j.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create restore directory")
	}

	stored := filepath.Join(j.dir, rec.StoredName)
	if err := j.xorCopy(stored, dest, 0o644); err != nil {
		_ = j.fs.Remove(dest)
		return "", err
	}
	if err := j.fs.Remove(stored); err != nil {
		log.Warn().Err(err).Str("path", stored).Msg("failed to remove restored quarantine copy")
	}

	records = append(records[:idx], records[idx+1:]...)
	if err := j.saveManifest(records); err != nil {
		return "", err
	}

	log.Info().Str("path", dest).Str("id", rec.ID).Msg("file restored")
	return dest, nil
}

// Delete permanently removes a quarantined file.
func (j *Jail) Delete(id string) (Record, error) {
	records, err := j.List()
	if err != nil {
		return Record{}, err
	}
	idx, err := match(records, id)
	if err != nil {
		return Record{}, err
	}
	rec := records[idx]

	stored := filepath.Join(j.dir, rec.StoredName)
	if err := j.fs.Remove(stored); err != nil && !os.IsNotExist(err) {
		return Record{}, errors.Wrapf(err, "failed to delete %s", stored)
	}

	records = append(records[:idx], records[idx+1:]...)
	if err := j.saveManifest(records); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (j *Jail) xorCopy(src, dst string, perm os.FileMode) error {
	in, err := j.fs.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	out, err := j.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}

	if _, err := io.Copy(&xorWriter{w: out, key: xorKey}, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "failed to copy %s", src)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", dst)
	}
	return nil
}

type xorWriter struct {
	w   io.Writer
	key byte
	buf []byte
}

func (x *xorWriter) Write(p []byte) (int, error) {
	if cap(x.buf) < len(p) {
		x.buf = make([]byte, len(p))
	}
	buf := x.buf[:len(p)]
	for i, b := range p {
		buf[i] = b ^ x.key
	}
	return x.w.Write(buf)
}
