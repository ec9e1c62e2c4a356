package profiler

import (
	"sync"
	"time"
)

// ScanStats are running counters over all scans of a process
type ScanStats struct {
	mu      sync.Mutex
	total   int64
	spam    int64
	last    time.Duration
	average time.Duration
}

// ScanSnapshot is a consistent copy of the counters
type ScanSnapshot struct {
	Total   int64         `json:"total"`
	Spam    int64         `json:"spam"`
	Last    time.Duration `json:"last"`
	Average time.Duration `json:"average"`
}

// Observe records one finished scan
func (s *ScanStats) Observe(d time.Duration, spam bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if spam {
		s.spam++
	}
	s.last = d
	// incremental mean
	s.average += (d - s.average) / time.Duration(s.total)
}

// Snapshot returns the current counters
func (s *ScanStats) Snapshot() ScanSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ScanSnapshot{Total: s.total, Spam: s.spam, Last: s.last, Average: s.average}
}
