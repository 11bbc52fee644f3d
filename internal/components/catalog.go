package components

import (
	"context"
	"fmt"
	"hash/crc32"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/pagesmith/internal/fragments"
)

// Definition is the canonical snapshot of a component.
type Definition struct {
	ID         string    `json:"id"`
	Fragment   string    `json:"fragment"`
	SourcePage string    `json:"sourcePage,omitempty"`
	Hash       string    `json:"hash"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// InstanceLocation is one element carrying a component id.
type InstanceLocation struct {
	Page      string `json:"page"`
	Path      string `json:"path"`
	Canonical bool   `json:"canonical,omitempty"`
}

// Entry pairs a definition with the places it is used. Definition is nil
// for ids that have instances but were never persisted.
type Entry struct {
	ID         string             `json:"id"`
	Definition *Definition        `json:"definition,omitempty"`
	Instances  []InstanceLocation `json:"instances"`
}

// EventType is the kind of catalog change.
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// Event reports a definition change to watchers.
type Event struct {
	Type       EventType
	ID         string
	Definition *Definition
	Timestamp  time.Time
}

// Catalog indexes component definitions and their instances across pages.
type Catalog struct {
	entries  map[string]*Entry
	mutex    sync.RWMutex
	watchers []chan Event
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		entries:  make(map[string]*Entry),
		watchers: make([]chan Event, 0),
	}
}

// Hash returns the change-detection checksum of a fragment.
func Hash(fragment string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(fragment)))
}

func (c *Catalog) entry(id string) *Entry {
	e, ok := c.entries[id]
	if !ok {
		e = &Entry{ID: id}
		c.entries[id] = e
	}
	return e
}

// Define records a definition. It returns false when the stored hash
// already matches, in which case watchers are not notified.
func (c *Catalog) Define(def *Definition) bool {
	if def.Hash == "" {
		def.Hash = Hash(def.Fragment)
	}
	if def.UpdatedAt.IsZero() {
		def.UpdatedAt = time.Now()
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	e := c.entry(def.ID)
	eventType := EventAdded
	if e.Definition != nil {
		if e.Definition.Hash == def.Hash {
			return false
		}
		eventType = EventUpdated
	}
	e.Definition = def
	c.notify(Event{Type: eventType, ID: def.ID, Definition: def, Timestamp: time.Now()})
	return true
}

// Track replaces the instance locations recorded for page.
func (c *Catalog) Track(page string, instances map[string][]InstanceLocation) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for id, e := range c.entries {
		kept := e.Instances[:0]
		for _, loc := range e.Instances {
			if loc.Page != page {
				kept = append(kept, loc)
			}
		}
		e.Instances = kept
		if e.Definition == nil && len(e.Instances) == 0 {
			delete(c.entries, id)
		}
	}
	for id, locs := range instances {
		e := c.entry(id)
		e.Instances = append(e.Instances, locs...)
	}
}

// Get returns a copy of the entry for id.
func (c *Catalog) Get(id string) (Entry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(e), true
}

// All returns copies of every entry sorted by id.
func (c *Catalog) All() []Entry {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Remove drops an entry and notifies watchers.
func (c *Catalog) Remove(id string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return
	}
	delete(c.entries, id)
	c.notify(Event{Type: EventRemoved, ID: id, Definition: e.Definition, Timestamp: time.Now()})
}

// Count returns the number of entries.
func (c *Catalog) Count() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// Load seeds definitions from a fragment store without notifying watchers.
func (c *Catalog) Load(ctx context.Context, store fragments.Store) error {
	records, err := store.List(ctx, fragments.KindComponent)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, rec := range records {
		c.entry(rec.ID).Definition = &Definition{
			ID:        rec.ID,
			Fragment:  rec.Body,
			Hash:      Hash(rec.Body),
			UpdatedAt: rec.UpdatedAt,
		}
	}
	return nil
}

// Watch returns a channel that receives catalog events.
func (c *Catalog) Watch() <-chan Event {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ch := make(chan Event, 100)
	c.watchers = append(c.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (c *Catalog) UnWatch(ch <-chan Event) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for i, watcher := range c.watchers {
		if watcher == ch {
			close(watcher)
			c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
			break
		}
	}
}

// notify must be called with the mutex held.
func (c *Catalog) notify(event Event) {
	for _, watcher := range c.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

func copyEntry(e *Entry) Entry {
	out := Entry{ID: e.ID, Instances: append([]InstanceLocation(nil), e.Instances...)}
	if e.Definition != nil {
		def := *e.Definition
		out.Definition = &def
	}
	return out
}
