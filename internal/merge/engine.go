package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/keys"
	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/markup"
)

// Engine selects and runs merge strategies.
type Engine struct {
	keys       *keys.Allocator
	logger     logging.Logger
	strategies map[StrategyName]Strategy
}

// NewEngine creates an engine. A nil allocator gets a fresh one.
func NewEngine(alloc *keys.Allocator, logger logging.Logger) *Engine {
	if alloc == nil {
		alloc = keys.NewAllocator()
	}
	e := &Engine{
		keys:       alloc,
		logger:     logging.OrNop(logger).WithComponent("merge"),
		strategies: make(map[StrategyName]Strategy),
	}
	e.Register(exactStrategy{keys: alloc})
	e.Register(structuralStrategy{keys: alloc})
	e.Register(layoutStrategy{})
	e.Register(deleteStrategy{})
	return e
}

// Register adds or replaces a strategy.
func (e *Engine) Register(s Strategy) {
	e.strategies[s.Name()] = s
}

// Keys returns the engine's key allocator.
func (e *Engine) Keys() *keys.Allocator {
	return e.keys
}

// Select decides which strategy handles req against the stored document:
// delete for deletions, exact when the before snippet occurs verbatim,
// layout for a bare body, structural otherwise.
func (e *Engine) Select(stored string, req *EditRequest) StrategyName {
	switch {
	case req.Delete:
		return StrategyDelete
	case req.HasSnippets() && strings.Contains(stored, req.Before):
		return StrategyExact
	case strings.TrimSpace(req.Key) == "" && strings.TrimSpace(req.Path) == "" && req.Body != "":
		return StrategyLayout
	default:
		return StrategyStructural
	}
}

// Merge applies req to stored using the selected strategy. When nothing is
// stored yet the candidate body serves as the base document. On error the
// caller must not write anything.
func (e *Engine) Merge(ctx context.Context, stored string, req *EditRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Body != "" {
		if _, err := markup.Check(req.Body); err != nil {
			return nil, errors.ErrMalformedDocument("", err)
		}
	}
	base := stored
	if strings.TrimSpace(base) == "" {
		base = req.Body
	}
	return e.MergeWith(ctx, e.Select(base, req), base, req)
}

// MergeWith runs the named strategy regardless of what Select would pick.
func (e *Engine) MergeWith(ctx context.Context, name StrategyName, stored string, req *EditRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s, ok := e.strategies[name]
	if !ok {
		return nil, errors.NewValidationError(errors.ErrCodeMalformedRequest, fmt.Sprintf("unknown merge strategy %q", name))
	}
	if name != StrategyLayout {
		if _, err := markup.Check(stored); err != nil {
			return nil, errors.ErrMalformedDocument("", err)
		}
	}

	res, err := s.Apply(stored, req)
	if err != nil {
		return nil, err
	}
	res.Strategy = name

	if !res.Matched {
		e.logger.Warn(ctx, errors.NewNotFoundError(errors.ErrCodeMissingTarget, "merge target not found"),
			"edit left document unchanged",
			"strategy", name, "key", req.Key, "path", req.Path)
		return res, nil
	}
	if res.Renamed {
		e.logger.Info(ctx, "content key renamed", "requested", req.Key, "key", res.Key)
	}
	e.logger.Debug(ctx, "merge applied",
		"strategy", name, "key", res.Key, "changed", res.Changed, "path", res.Path)
	return res, nil
}
