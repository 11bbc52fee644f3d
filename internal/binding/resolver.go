package binding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/logging"
)

// Fetch outcomes reported to a FetchObserver.
const (
	OutcomeInline  = "inline"
	OutcomeFresh   = "fresh"
	OutcomeFetched = "fetched"
	OutcomeStale   = "stale"
	OutcomeFailed  = "failed"
)

// FetchObserver counts resolution outcomes.
type FetchObserver interface {
	ObserveFetch(outcome string)
}

// Resolver turns a service declaration into decoded data. Remote failures
// never surface as errors: they degrade to the last good value or to no
// value at all.
type Resolver struct {
	cache    Cache
	fetcher  Fetcher
	clock    Clock
	ttl      time.Duration
	timeout  time.Duration
	logger   logging.Logger
	observer FetchObserver
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache replaces the default in-memory cache.
func WithCache(c Cache) ResolverOption { return func(r *Resolver) { r.cache = c } }

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f Fetcher) ResolverOption { return func(r *Resolver) { r.fetcher = f } }

// WithClock replaces the wall clock.
func WithClock(c Clock) ResolverOption { return func(r *Resolver) { r.clock = c } }

// WithTTL sets how long a fetched value is served without refetching. Zero
// refetches on every resolution.
func WithTTL(ttl time.Duration) ResolverOption { return func(r *Resolver) { r.ttl = ttl } }

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) ResolverOption { return func(r *Resolver) { r.timeout = d } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) ResolverOption { return func(r *Resolver) { r.logger = l } }

// WithObserver reports fetch outcomes.
func WithObserver(o FetchObserver) ResolverOption { return func(r *Resolver) { r.observer = o } }

// NewResolver creates a resolver with a memory cache, the system clock and
// an HTTP fetcher unless options replace them.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		clock:   SystemClock,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewMemoryCache()
	}
	if r.fetcher == nil {
		r.fetcher = NewHTTPFetcher(r.timeout, DefaultMaxBytes)
	}
	r.logger = logging.OrNop(r.logger).WithComponent("binding")
	return r
}

func (r *Resolver) observe(outcome string) {
	if r.observer != nil {
		r.observer.ObserveFetch(outcome)
	}
}

// Resolve returns the decoded data of svc. Inline data wins over the URL.
// ok is false when no value is available.
func (r *Resolver) Resolve(ctx context.Context, svc Service) (any, bool) {
	if svc.Inline != "" {
		var v any
		if err := json.Unmarshal([]byte(svc.Inline), &v); err == nil {
			r.observe(OutcomeInline)
			return v, true
		} else if svc.URL == "" {
			r.logger.Warn(ctx, err, "inline data is not valid JSON", "alias", svc.Alias)
			r.observe(OutcomeFailed)
			return nil, false
		}
	}
	if svc.URL == "" {
		return nil, false
	}

	entry, cached := r.cache.Get(svc.URL)
	if cached && r.ttl > 0 && r.clock.Now().Sub(entry.FetchedAt) < r.ttl {
		r.observe(OutcomeFresh)
		return entry.Value, true
	}

	v, err := r.fetch(ctx, svc)
	if err == nil {
		r.cache.Put(svc.URL, Entry{Value: v, FetchedAt: r.clock.Now()})
		r.observe(OutcomeFetched)
		return v, true
	}

	if cached {
		r.logger.Warn(ctx, err, "data source fetch failed, serving stale value",
			"alias", svc.Alias, "url", svc.URL, "fetched_at", entry.FetchedAt)
		r.observe(OutcomeStale)
		return entry.Value, true
	}
	r.logger.Warn(ctx, err, "data source fetch failed", "alias", svc.Alias, "url", svc.URL)
	r.observe(OutcomeFailed)
	return nil, false
}

func (r *Resolver) fetch(ctx context.Context, svc Service) (any, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	body, err := r.fetcher.Fetch(ctx, svc.Method, svc.URL)
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeFetchFailed, "data source fetch failed", err).
			WithContext("url", svc.URL)
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, errors.NewMalformedError(errors.ErrCodeFetchFailed, "data source returned invalid JSON", err).
			WithContext("url", svc.URL)
	}
	return v, nil
}
