// Package metrics is a small Prometheus text-format registry. Metrics
// register under a family name; label combinations are baked into the series
// name via WithLabels, so each combination is its own series line. The
// exposition endpoint renders families in registration order.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets cover request and pipeline latencies in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter only goes up.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge goes both ways.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram tracks a value distribution over fixed buckets. Counts are kept
// cumulative the way the exposition format wants them.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64
	sum    float64
	total  uint64
}

func newHistogram(bounds []float64) *Histogram {
	b := make([]float64, len(bounds))
	copy(b, bounds)
	sort.Float64s(b)
	return &Histogram{bounds: b, counts: make([]uint64, len(b))}
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.total++
	for i := len(h.bounds) - 1; i >= 0; i-- {
		if v > h.bounds[i] {
			break
		}
		h.counts[i]++
	}
	h.mu.Unlock()
}

// Since observes the seconds elapsed from t.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

func (h *Histogram) snapshot() ([]float64, []uint64, float64, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := make([]uint64, len(h.counts))
	copy(c, h.counts)
	return h.bounds, c, h.sum, h.total
}

// family groups the series sharing one base name.
type family struct {
	name   string
	typ    string
	help   string
	series []string
}

// Registry holds named metrics and renders them.
type Registry struct {
	mu       sync.RWMutex
	families []*family
	byName   map[string]*family
	counters map[string]*Counter
	gauges   map[string]*Gauge
	hists    map[string]*Histogram
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byName:   make(map[string]*family),
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		hists:    make(map[string]*Histogram),
	}
}

func (r *Registry) register(series, typ, help string) {
	base := baseName(series)
	fam, ok := r.byName[base]
	if !ok {
		fam = &family{name: base, typ: typ, help: help}
		r.byName[base] = fam
		r.families = append(r.families, fam)
	}
	fam.series = append(fam.series, series)
	sort.Strings(fam.series)
}

// Counter returns the counter for the series, creating it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.register(name, "counter", help)
	return c
}

// Gauge returns the gauge for the series, creating it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.register(name, "gauge", help)
	return g
}

// Histogram returns the histogram for the series, creating it on first use.
// Nil buckets fall back to DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hists[name]; ok {
		return h
	}
	h := newHistogram(buckets)
	r.hists[name] = h
	r.register(name, "histogram", help)
	return h
}

// WithLabels bakes label pairs into a series name:
// WithLabels("jobs_total", "panel", "A1") => `jobs_total{panel="A1"}`.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(kvs[i])
		b.WriteString(`="`)
		b.WriteString(kvs[i+1])
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

func baseName(series string) string {
	if i := strings.IndexByte(series, '{'); i >= 0 {
		return series[:i]
	}
	return series
}

// seriesLabels returns the label body of a series name with a leading comma,
// ready to splice after an le label. Empty for unlabeled series.
func seriesLabels(series string) string {
	i := strings.IndexByte(series, '{')
	if i < 0 {
		return ""
	}
	inner := series[i+1 : len(series)-1]
	if inner == "" {
		return ""
	}
	return "," + inner
}

// Render writes every family in the Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, fam := range r.families {
		if fam.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", fam.name, fam.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", fam.name, fam.typ)
		for _, series := range fam.series {
			switch fam.typ {
			case "counter":
				fmt.Fprintf(&b, "%s %d\n", series, r.counters[series].Value())
			case "gauge":
				fmt.Fprintf(&b, "%s %d\n", series, r.gauges[series].Value())
			case "histogram":
				r.renderHistogram(&b, fam.name, series)
			}
		}
	}
	return b.String()
}

func (r *Registry) renderHistogram(b *strings.Builder, base, series string) {
	bounds, counts, sum, total := r.hists[series].snapshot()
	labels := seriesLabels(series)
	for i, ub := range bounds {
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"%s} %d\n", base, ub, labels, counts[i])
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"%s} %d\n", base, labels, total)
	if labels != "" {
		labels = "{" + labels[1:] + "}"
	}
	fmt.Fprintf(b, "%s_sum%s %g\n", base, labels, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, labels, total)
}

// CollectRuntime samples Go runtime stats into gauges under the prefix,
// once immediately and then on every interval tick for the life of the
// process.
func (r *Registry) CollectRuntime(prefix string, interval time.Duration) {
	goroutines := r.Gauge(prefix+"_goroutines", "Number of goroutines")
	heapAlloc := r.Gauge(prefix+"_heap_alloc_bytes", "Heap bytes in use")
	heapSys := r.Gauge(prefix+"_heap_sys_bytes", "Heap bytes obtained from the OS")
	gcRuns := r.Gauge(prefix+"_gc_cycles_total", "Completed GC cycles")

	sample := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		goroutines.Set(int64(runtime.NumGoroutine()))
		heapAlloc.Set(int64(ms.HeapAlloc))
		heapSys.Set(int64(ms.HeapSys))
		gcRuns.Set(int64(ms.NumGC))
	}
	sample()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			sample()
		}
	}()
}

// Handler serves the rendered registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}

// Serve blocks on a dedicated metrics server at /metrics.
func (r *Registry) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

// ServeAsync runs Serve in a goroutine and logs if it stops.
func (r *Registry) ServeAsync(port int) {
	go func() {
		if err := r.Serve(port); err != nil {
			slog.Error("metrics server stopped", "port", port, "error", err)
		}
	}()
}
