package retrieval

import "go.uber.org/atomic"

type counters struct {
	hits        atomic.Int64
	misses      atomic.Int64
	ragCalls    atomic.Int64
	timeSavedMS atomic.Int64
}

// Stats is the cumulative coordinator view since start or the last reset.
type Stats struct {
	CacheHits           int64   `json:"cache_hits"`
	CacheMisses         int64   `json:"cache_misses"`
	RAGCalls            int64   `json:"rag_calls"`
	TimeSavedMS         int64   `json:"time_saved_ms"`
	TotalFactorRequests int64   `json:"total_factor_requests"`
	HitRate             float64 `json:"hit_rate"`
	TimeSavedSeconds    float64 `json:"time_saved_seconds"`
}

func (c *Coordinator) Stats() Stats {
	s := Stats{
		CacheHits:   c.stats.hits.Load(),
		CacheMisses: c.stats.misses.Load(),
		RAGCalls:    c.stats.ragCalls.Load(),
		TimeSavedMS: c.stats.timeSavedMS.Load(),
	}
	s.TotalFactorRequests = s.CacheHits + s.CacheMisses
	if s.TotalFactorRequests > 0 {
		s.HitRate = float64(s.CacheHits) / float64(s.TotalFactorRequests)
	}
	s.TimeSavedSeconds = float64(s.TimeSavedMS) / 1000
	return s
}

func (c *Coordinator) ResetStats() {
	c.stats.hits.Store(0)
	c.stats.misses.Store(0)
	c.stats.ragCalls.Store(0)
	c.stats.timeSavedMS.Store(0)
}
