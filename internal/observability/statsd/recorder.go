package statsd

import (
	"sync"
	"time"
)

// Sample is one metric captured by a Recorder.
type Sample struct {
	Kind  string // "c", "g" or "ms"
	Name  string
	Value float64
	Tags  map[string]string
}

// Recorder is an in-memory Sink for tests and local debugging.
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
}

var _ Sink = (*Recorder)(nil)

// Count implements Sink.
func (r *Recorder) Count(name string, value int64, tags map[string]string) {
	r.add(Sample{Kind: "c", Name: name, Value: float64(value), Tags: cloneTags(tags)})
}

// Gauge implements Sink.
func (r *Recorder) Gauge(name string, value float64, tags map[string]string) {
	r.add(Sample{Kind: "g", Name: name, Value: value, Tags: cloneTags(tags)})
}

// Timing implements Sink.
func (r *Recorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.add(Sample{Kind: "ms", Name: name, Value: float64(value) / float64(time.Millisecond), Tags: cloneTags(tags)})
}

func (r *Recorder) add(s Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

// Samples returns a copy of everything recorded so far.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Named returns the samples recorded under name.
func (r *Recorder) Named(name string) []Sample {
	var out []Sample
	for _, s := range r.Samples() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}
