// Package storage reads and writes working documents, one file per page.
// Writes go through a temp file and rename, so a failed operation never
// leaves a partially written page behind.
package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/sanitize"
)

// Documents is the page store rooted at the pages directory.
type Documents struct {
	dir string
}

// NewDocuments creates a store over dir.
func NewDocuments(dir string) *Documents {
	return &Documents{dir: dir}
}

// Dir returns the pages directory.
func (d *Documents) Dir() string {
	return d.dir
}

// Path returns the file path of a page after sanitizing its name.
func (d *Documents) Path(page string) (string, string, error) {
	name, err := sanitize.PageName(page)
	if err != nil {
		return "", "", err
	}
	return name, filepath.Join(d.dir, name), nil
}

// Read returns the raw source of page.
func (d *Documents) Read(_ context.Context, page string) (string, error) {
	name, path, err := d.Path(page)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", errors.ErrPageNotFound(name)
	}
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeStorage, "cannot read page", err).WithPage(name)
	}
	return string(data), nil
}

// Write replaces the source of page atomically.
func (d *Documents) Write(_ context.Context, page, src string) error {
	name, path, err := d.Path(page)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return errors.NewIOError(errors.ErrCodeStorage, "cannot create pages directory", err)
	}
	if err := atomic.WriteFile(path, strings.NewReader(src)); err != nil {
		return errors.NewIOError(errors.ErrCodeStorage, "cannot write page", err).WithPage(name)
	}
	return nil
}

// Exists reports whether page is stored.
func (d *Documents) Exists(_ context.Context, page string) (bool, error) {
	_, path, err := d.Path(page)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewIOError(errors.ErrCodeStorage, "cannot stat page", err)
	}
	return true, nil
}

// Delete removes page. Removing a missing page is not an error.
func (d *Documents) Delete(_ context.Context, page string) error {
	name, path, err := d.Path(page)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError(errors.ErrCodeStorage, "cannot delete page", err).WithPage(name)
	}
	return nil
}

// List returns the stored page names, sorted.
func (d *Documents) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot list pages", err)
	}
	var pages []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".html") {
			continue
		}
		pages = append(pages, e.Name())
	}
	sort.Strings(pages)
	return pages, nil
}
