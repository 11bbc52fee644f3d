package fragments

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/conneroisu/pagesmith/internal/errors"
)

// FileStore keeps one file per record: components/<id>.html and
// styles/<id>.css. Writes are atomic renames.
type FileStore struct {
	dirs map[Kind]string
}

var extensions = map[Kind]string{
	KindComponent: ".html",
	KindStyle:     ".css",
}

// NewFileStore creates a store rooted at the given directories. The
// directories are created on first write.
func NewFileStore(componentsDir, stylesDir string) *FileStore {
	return &FileStore{dirs: map[Kind]string{
		KindComponent: componentsDir,
		KindStyle:     stylesDir,
	}}
}

func (s *FileStore) path(kind Kind, id string) (string, error) {
	dir, ok := s.dirs[kind]
	if !ok {
		return "", errors.NewValidationError(errors.ErrCodeInvalidName, "unknown fragment kind "+string(kind))
	}
	clean, err := checkID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, clean+extensions[kind]), nil
}

// Get reads a record.
func (s *FileStore) Get(_ context.Context, kind Kind, id string) (string, bool, error) {
	path, err := s.path(kind, id)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewIOError(errors.ErrCodeStorage, "cannot read fragment", err).
			WithContext("path", path)
	}
	return string(data), true, nil
}

// Put writes a record atomically.
func (s *FileStore) Put(_ context.Context, kind Kind, id, body string) error {
	path, err := s.path(kind, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError(errors.ErrCodeStorage, "cannot create fragment directory", err)
	}
	if err := atomic.WriteFile(path, strings.NewReader(body)); err != nil {
		return errors.NewIOError(errors.ErrCodeStorage, "cannot write fragment", err).
			WithContext("path", path)
	}
	return nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *FileStore) Delete(_ context.Context, kind Kind, id string) error {
	path, err := s.path(kind, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError(errors.ErrCodeStorage, "cannot delete fragment", err)
	}
	return nil
}

// List returns every record of kind sorted by id.
func (s *FileStore) List(_ context.Context, kind Kind) ([]Record, error) {
	dir, ok := s.dirs[kind]
	if !ok {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidName, "unknown fragment kind "+string(kind))
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot list fragments", err)
	}

	ext := extensions[kind]
	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot read fragment", err).
				WithContext("path", path)
		}
		rec := Record{Kind: kind, ID: strings.TrimSuffix(entry.Name(), ext), Body: string(data)}
		if info, err := entry.Info(); err == nil {
			rec.UpdatedAt = info.ModTime()
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
