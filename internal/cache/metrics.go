package cache

import "sync/atomic"

// Metrics counts cache traffic. The zero value is ready to use.
type Metrics struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
	sets   atomic.Int64
	evicts atomic.Int64
}

type MetricsSnapshot struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	Sets    int64   `json:"sets"`
	Evicts  int64   `json:"invalidations"`
	HitRate float64 `json:"hit_rate"`
}

func (m *Metrics) Hit()        { m.hits.Add(1) }
func (m *Metrics) Miss()       { m.misses.Add(1) }
func (m *Metrics) Error()      { m.errors.Add(1) }
func (m *Metrics) Set()        { m.sets.Add(1) }
func (m *Metrics) Invalidate() { m.evicts.Add(1) }

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Errors: m.errors.Load(),
		Sets:   m.sets.Load(),
		Evicts: m.evicts.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100.0
	}
	return s
}
