package cache

import "go.uber.org/atomic"

type levelCounters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *levelCounters) snapshot() LevelStats {
	s := LevelStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

type counters struct {
	l1, l2, generic levelCounters
	sets            atomic.Int64
	errors          atomic.Int64
}

func (c *counters) level(name string) *levelCounters {
	switch name {
	case LevelL1:
		return &c.l1
	case LevelL2:
		return &c.l2
	default:
		return &c.generic
	}
}

func (c *counters) hit(level string)  { c.level(level).hits.Inc() }
func (c *counters) miss(level string) { c.level(level).misses.Inc() }

// LevelStats are the counters of one cache level.
type LevelStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats is a snapshot of the Manager's counters. TotalRequests and HitRate
// cover the generic per-factor cache.
type Stats struct {
	Backend       string     `json:"cache_type"`
	Level1        LevelStats `json:"level1"`
	Level2        LevelStats `json:"level2"`
	Generic       LevelStats `json:"generic"`
	Sets          int64      `json:"sets"`
	Errors        int64      `json:"errors"`
	TotalRequests int64      `json:"total_requests"`
	HitRate       float64    `json:"hit_rate"`
	Entries       int        `json:"memory_cache_size"`
}

func (m *Manager) Stats() Stats {
	generic := m.stats.generic.snapshot()
	s := Stats{
		Backend:       m.cfg.Backend,
		Level1:        m.stats.l1.snapshot(),
		Level2:        m.stats.l2.snapshot(),
		Generic:       generic,
		Sets:          m.stats.sets.Load(),
		Errors:        m.stats.errors.Load(),
		TotalRequests: generic.Hits + generic.Misses,
		HitRate:       generic.HitRate,
	}
	if sz, ok := storeAs[Sizer](m.store); ok {
		s.Entries = sz.Len()
	}
	return s
}
