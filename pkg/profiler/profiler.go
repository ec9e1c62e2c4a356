package profiler

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// maxSamples bounds the timings kept per operation
const maxSamples = 4096

// Profiler tracks execution times per detector
type Profiler struct {
	mu    sync.RWMutex
	times map[string][]time.Duration
}

// NewProfiler creates a new profiler
func NewProfiler() *Profiler {
	return &Profiler{
		times: make(map[string][]time.Duration),
	}
}

// Record records a timing. Only the most recent samples are kept.
func (p *Profiler) Record(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	samples := append(p.times[name], duration)
	if len(samples) > maxSamples {
		samples = samples[len(samples)-maxSamples:]
	}
	p.times[name] = samples
}

// Stats contains timing statistics
type Stats struct {
	Name    string        `json:"name"`
	Count   int           `json:"count"`
	Total   time.Duration `json:"total"`
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Median  time.Duration `json:"median"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
}

// GetStats returns timing statistics for an operation
func (p *Profiler) GetStats(name string) Stats {
	p.mu.RLock()
	sorted := append([]time.Duration(nil), p.times[name]...)
	p.mu.RUnlock()

	if len(sorted) == 0 {
		return Stats{Name: name}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var total time.Duration
	for _, t := range sorted {
		total += t
	}

	n := len(sorted)
	return Stats{
		Name:    name,
		Count:   n,
		Total:   total,
		Average: total / time.Duration(n),
		Min:     sorted[0],
		Max:     sorted[n-1],
		Median:  sorted[n/2],
		P95:     sorted[min(n-1, int(float64(n)*0.95))],
		P99:     sorted[min(n-1, int(float64(n)*0.99))],
	}
}

// GetAllStats returns statistics for all tracked operations, sorted by name
func (p *Profiler) GetAllStats() []Stats {
	p.mu.RLock()
	names := make([]string, 0, len(p.times))
	for name := range p.times {
		names = append(names, name)
	}
	p.mu.RUnlock()

	sort.Strings(names)

	stats := make([]Stats, 0, len(names))
	for _, name := range names {
		stats = append(stats, p.GetStats(name))
	}
	return stats
}

// Reset clears all timing data
func (p *Profiler) Reset() {
	p.mu.Lock()
	p.times = make(map[string][]time.Duration)
	p.mu.Unlock()
}

// PrintReport writes a formatted timing table
func (p *Profiler) PrintReport(w io.Writer) {
	stats := p.GetAllStats()
	if len(stats) == 0 {
		fmt.Fprintln(w, "No timing data available")
		return
	}

	fmt.Fprintf(w, "%-16s %8s %10s %10s %10s %10s %10s\n",
		"Detector", "Count", "Avg", "Min", "Max", "P95", "P99")
	for _, stat := range stats {
		fmt.Fprintf(w, "%-16s %8d %10s %10s %10s %10s %10s\n",
			truncate(stat.Name, 16),
			stat.Count,
			FormatDuration(stat.Average),
			FormatDuration(stat.Min),
			FormatDuration(stat.Max),
			FormatDuration(stat.P95),
			FormatDuration(stat.P99),
		)
	}
}

// FormatDuration formats a duration for display
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fµs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
