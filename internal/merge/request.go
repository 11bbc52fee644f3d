// Package merge applies one edit to a stored document. Edits either replace
// a verbatim snippet, retag and substitute a single slot in place, replace
// the whole document, or delete one element. Every strategy edits source
// spans, so markup the edit does not touch keeps its exact bytes.
package merge

import (
	"strings"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/markup"
)

// EditRequest is one edit produced by the editor UI.
type EditRequest struct {
	Key   string  `json:"key"`
	Value string  `json:"value"`
	Type  string  `json:"type"`
	Link  *string `json:"link,omitempty"`
	Path  string  `json:"path,omitempty"`

	// Before and After are the serializations of the one element that
	// changed, before and after the edit.
	Before string `json:"beforeSnippet,omitempty"`
	After  string `json:"afterSnippet,omitempty"`

	Delete bool `json:"delete,omitempty"`

	// Body is the full candidate document held by the caller.
	Body string `json:"body,omitempty"`
}

// SlotType returns the parsed slot kind of the request.
func (r *EditRequest) SlotType() (markup.SlotType, error) {
	return markup.ParseSlotType(r.Type)
}

// HasSnippets reports whether the request carries a before/after pair.
func (r *EditRequest) HasSnippets() bool {
	return r.Before != "" && r.After != ""
}

// Validate rejects requests that violate the caller contract. It never
// looks at storage.
func (r *EditRequest) Validate() error {
	if r == nil {
		return errors.NewValidationError(errors.ErrCodeMalformedRequest, "empty edit request")
	}
	if _, err := r.SlotType(); err != nil {
		return errors.NewValidationError(errors.ErrCodeMalformedRequest, err.Error())
	}

	key := strings.TrimSpace(r.Key)
	path := strings.TrimSpace(r.Path)
	if r.Delete {
		if key == "" && path == "" {
			return errors.ErrMissingTarget("delete")
		}
		return nil
	}
	if key == "" && path == "" && r.Body == "" && !r.HasSnippets() {
		return errors.ErrMissingTarget("edit")
	}
	return nil
}
