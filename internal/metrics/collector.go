// Package metrics keeps per-phase pipeline timings in memory for the
// stats command and the HTTP /stats endpoint.
package metrics

import (
	"sync"
	"time"
)

// Phases timed by the pipeline.
const (
	OpExtract   = "extract"
	OpTransform = "transform"
	OpLoad      = "load"
	OpUpsert    = "upsert" // one sample per record write
)

// PhaseStats is the JSON view of one phase.
type PhaseStats struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AvgTimeMs     float64 `json:"avg_time_ms"`
	MinTimeMs     int64   `json:"min_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
	LastTimeMs    int64   `json:"last_time_ms"`
	Records       int64   `json:"records"`
	RecordsPerSec float64 `json:"records_per_sec,omitempty"`
}

// Snapshot is the state of all phases at one instant. Phases that never
// ran are nil.
type Snapshot struct {
	UptimeSeconds float64     `json:"uptime_seconds"`
	Extract       *PhaseStats `json:"extract,omitempty"`
	Transform     *PhaseStats `json:"transform,omitempty"`
	Load          *PhaseStats `json:"load,omitempty"`
	Upsert        *PhaseStats `json:"upsert,omitempty"`
}

type phase struct {
	samples  int64
	records  int64
	total    time.Duration
	min, max time.Duration
	last     time.Duration
}

func (p *phase) add(d time.Duration, n int) {
	if p.samples == 0 || d < p.min {
		p.min = d
	}
	p.max = max(p.max, d)
	p.last = d
	p.total += d
	p.records += int64(n)
	p.samples++
}

func (p *phase) stats() *PhaseStats {
	if p == nil || p.samples == 0 {
		return nil
	}
	s := &PhaseStats{
		Count:       p.samples,
		TotalTimeMs: p.total.Milliseconds(),
		AvgTimeMs:   float64(p.total.Milliseconds()) / float64(p.samples),
		MinTimeMs:   p.min.Milliseconds(),
		MaxTimeMs:   p.max.Milliseconds(),
		LastTimeMs:  p.last.Milliseconds(),
		Records:     p.records,
	}
	if secs := p.total.Seconds(); secs > 0 && p.records > 0 {
		s.RecordsPerSec = float64(p.records) / secs
	}
	return s
}

// Collector is safe for concurrent use; the loader records upserts from
// many goroutines.
type Collector struct {
	mu      sync.Mutex
	started time.Time
	phases  map[string]*phase
}

func NewCollector() *Collector {
	return &Collector{started: time.Now(), phases: map[string]*phase{}}
}

// RecordTiming records one sample that handled no countable records.
func (c *Collector) RecordTiming(op string, d time.Duration) {
	c.RecordBatch(op, d, 0)
}

// RecordBatch records one sample of op that handled n records.
func (c *Collector) RecordBatch(op string, d time.Duration, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.phases[op]
	if p == nil {
		p = &phase{}
		c.phases[op] = p
	}
	p.add(d, n)
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.started).Seconds(),
		Extract:       c.phases[OpExtract].stats(),
		Transform:     c.phases[OpTransform].stats(),
		Load:          c.phases[OpLoad].stats(),
		Upsert:        c.phases[OpUpsert].stats(),
	}
}
