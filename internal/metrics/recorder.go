// Package metrics exposes pipeline counters through Prometheus. Every
// method is safe on a nil *Recorder, so components can take an optional
// recorder without checking it.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagesmith"

// Recorder counts merges, data-source fetches and publish runs.
type Recorder struct {
	registry        *prom.Registry
	merges          *prom.CounterVec
	renames         prom.Counter
	fetches         *prom.CounterVec
	publishPages    *prom.CounterVec
	publishDuration prom.Histogram
	componentSyncs  prom.Counter
}

// NewRecorder creates a recorder registered on reg, or on a fresh registry
// when reg is nil.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		registry: reg,
		merges: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Edit merges by strategy and whether the target matched",
		}, []string{"strategy", "matched"}),
		renames: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "key_renames_total",
			Help:      "Content keys renamed to stay unique",
		}),
		fetches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "data_fetches_total",
			Help:      "Data source resolutions by outcome",
		}, []string{"outcome"}),
		publishPages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_pages_total",
			Help:      "Published pages by result",
		}, []string{"result"}),
		publishDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of publish runs",
			Buckets:   prom.DefBuckets,
		}),
		componentSyncs: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "component_instances_synced_total",
			Help:      "Component instances overwritten from their canonical copy",
		}),
	}
	reg.MustRegister(r.merges, r.renames, r.fetches, r.publishPages, r.publishDuration, r.componentSyncs)
	return r
}

// Registry returns the registry the recorder is registered on.
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveMerge counts one merge.
func (r *Recorder) ObserveMerge(strategy string, matched, renamed bool) {
	if r == nil {
		return
	}
	r.merges.WithLabelValues(strategy, boolLabel(matched)).Inc()
	if renamed {
		r.renames.Inc()
	}
}

// ObserveFetch counts one data-source resolution.
func (r *Recorder) ObserveFetch(outcome string) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(outcome).Inc()
}

// ObservePublish counts one page publish.
func (r *Recorder) ObservePublish(_ string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failed"
	}
	r.publishPages.WithLabelValues(result).Inc()
}

// ObservePublishDuration records the duration of a publish run.
func (r *Recorder) ObservePublishDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.publishDuration.Observe(d.Seconds())
}

// ObserveSync counts instances rewritten by a component sync.
func (r *Recorder) ObserveSync(instances int) {
	if r == nil || instances <= 0 {
		return
	}
	r.componentSyncs.Add(float64(instances))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
