package sqlexec

import (
	"sort"
	"sync"
)

// Stats counts executed queries by name. It is safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	queries map[string]int64
	errors  map[string]int64
}

func newStats() *Stats {
	return &Stats{queries: make(map[string]int64), errors: make(map[string]int64)}
}

func (s *Stats) record(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[name]++
	if err != nil {
		s.errors[name]++
	}
}

// StatsSnapshot is a copy of the counters.
type StatsSnapshot struct {
	Queries map[string]int64
	Errors  map[string]int64
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Queries: make(map[string]int64, len(s.queries)),
		Errors:  make(map[string]int64, len(s.errors)),
	}
	for k, v := range s.queries {
		snap.Queries[k] = v
	}
	for k, v := range s.errors {
		snap.Errors[k] = v
	}
	return snap
}

// Total returns the number of executed queries.
func (s StatsSnapshot) Total() int64 {
	var total int64
	for _, v := range s.Queries {
		total += v
	}
	return total
}

// Names returns the query names in sorted order.
func (s StatsSnapshot) Names() []string {
	names := make([]string, 0, len(s.Queries))
	for name := range s.Queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
