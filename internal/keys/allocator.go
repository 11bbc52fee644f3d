// Package keys guarantees that content keys stay unique within a document.
package keys

import (
	"strconv"

	"github.com/conneroisu/pagesmith/internal/markup"
)

// Allocator hands out unique content keys. It keeps no index of any
// document: every allocation starts from the source it is given, because
// deletes and component syncs change the tag set between calls.
type Allocator struct {
	sep   string
	first int
}

// NewAllocator returns an allocator that suffixes colliding keys with -2,
// -3, and so on.
func NewAllocator() *Allocator {
	return &Allocator{sep: "-", first: 2}
}

// Session allocates several keys against one document. Every key it hands
// out stays taken for the rest of the session, so a batch of new slots
// never collides with itself.
type Session struct {
	alloc *Allocator
	taken map[string]struct{}
}

// Session starts an allocation session over the keys tagged in ix.
func (a *Allocator) Session(ix *markup.Index) *Session {
	if a == nil {
		a = NewAllocator()
	}
	return &Session{alloc: a, taken: ix.Keys()}
}

// Allocate returns base when it is free (ignoring currentKey), otherwise
// the first free suffixed form. The returned key is taken from then on.
// The bool reports whether a rename happened.
func (s *Session) Allocate(base, currentKey string) (string, bool) {
	free := func(k string) bool {
		if k == currentKey && k != "" {
			return true
		}
		_, used := s.taken[k]
		return !used
	}

	key, renamed := base, false
	if !free(base) {
		renamed = true
		for n := s.alloc.first; ; n++ {
			key = base + s.alloc.sep + strconv.Itoa(n)
			if free(key) {
				break
			}
		}
	}
	s.taken[key] = struct{}{}
	return key, renamed
}

// EnsureUnique allocates a single key against ix.
func (a *Allocator) EnsureUnique(ix *markup.Index, base, currentKey string) (string, bool) {
	return a.Session(ix).Allocate(base, currentKey)
}
