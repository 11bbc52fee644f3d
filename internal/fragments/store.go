// Package fragments stores named reusable markup: component fragments and
// stylesheets. Records are keyed by kind and sanitized id and live in a
// global namespace shared by every page.
package fragments

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/sanitize"
)

// Kind separates component fragments from stylesheets.
type Kind string

const (
	KindComponent Kind = "component"
	KindStyle     Kind = "style"
)

// Record is one stored fragment.
type Record struct {
	Kind      Kind
	ID        string
	Body      string
	UpdatedAt time.Time
}

// Store persists fragments. Get reports a missing record with ok=false, not
// an error.
type Store interface {
	Get(ctx context.Context, kind Kind, id string) (body string, ok bool, err error)
	Put(ctx context.Context, kind Kind, id, body string) error
	Delete(ctx context.Context, kind Kind, id string) error
	List(ctx context.Context, kind Kind) ([]Record, error)
	Close() error
}

// Open returns the backend selected by cfg.Components.Backend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Components.Backend {
	case "", config.BackendFile:
		return NewFileStore(cfg.ComponentsPath(), cfg.StylesPath()), nil
	case config.BackendSQLite:
		dsn := cfg.Components.DSN
		if !filepath.IsAbs(dsn) && dsn != ":memory:" {
			dsn = filepath.Join(cfg.Site.Root, dsn)
		}
		return OpenSQLStore(dsn)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown component backend %q", cfg.Components.Backend))
	}
}

func checkID(id string) (string, error) {
	clean, err := sanitize.ComponentID(id)
	if err != nil {
		return "", err
	}
	return clean, nil
}
