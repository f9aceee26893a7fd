// Package observability provides pruning statistics tracking for workload
// analysis and distribution column tuning.
package observability

import (
	"sort"
	"sync"
	"time"
)

// PruneStats tracks per-table pruning outcomes and predicate operator
// frequency.
type PruneStats struct {
	mu     sync.RWMutex
	tables map[string]*TableStats
	window time.Duration
}

// TableStats holds pruning statistics for one distributed table.
type TableStats struct {
	Table          string
	Calls          int64
	ShardsExamined int64
	ShardsSelected int64
	LastSeen       time.Time
	Operators      map[string]int // operator → count (e.g., "=" → 5, "IN" → 2)
}

// PruneRatio returns the fraction of examined shards that pruning
// eliminated, 0 when nothing was examined.
func (s *TableStats) PruneRatio() float64 {
	if s.ShardsExamined == 0 {
		return 0
	}
	return 1 - float64(s.ShardsSelected)/float64(s.ShardsExamined)
}

// NewPruneStats creates a new pruning statistics tracker.
// window: time duration for expiring idle tables (e.g., 1 hour)
func NewPruneStats(window time.Duration) *PruneStats {
	return &PruneStats{
		tables: make(map[string]*TableStats),
		window: window,
	}
}

// RecordPrune records one pruning call for a table.
// This method is O(1) and thread-safe.
func (p *PruneStats) RecordPrune(table string, shardsExamined, shardsSelected int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.lookup(table)
	stats.Calls++
	stats.ShardsExamined += int64(shardsExamined)
	stats.ShardsSelected += int64(shardsSelected)
	stats.LastSeen = time.Now()
}

// RecordOperator records one predicate operator seen while pruning a
// table.
// This method is O(1) and thread-safe.
func (p *PruneStats) RecordOperator(table, operator string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.lookup(table)
	stats.LastSeen = time.Now()
	stats.Operators[operator]++
}

func (p *PruneStats) lookup(table string) *TableStats {
	stats, exists := p.tables[table]
	if !exists {
		stats = &TableStats{
			Table:     table,
			Operators: make(map[string]int),
		}
		p.tables[table] = stats
	}
	return stats
}

// GetTopTables returns the top N tables by pruning call count.
// Returns a copy of the stats sorted by call count (descending).
func (p *PruneStats) GetTopTables(n int) []TableStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if n <= 0 || len(p.tables) == 0 {
		return []TableStats{}
	}

	stats := make([]TableStats, 0, len(p.tables))
	for _, s := range p.tables {
		// Deep copy to prevent external modification
		statsCopy := TableStats{
			Table:          s.Table,
			Calls:          s.Calls,
			ShardsExamined: s.ShardsExamined,
			ShardsSelected: s.ShardsSelected,
			LastSeen:       s.LastSeen,
			Operators:      make(map[string]int),
		}
		for op, count := range s.Operators {
			statsCopy.Operators[op] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Calls > stats[j].Calls
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// GetTable returns a copy of one table's statistics, false when the
// table has never been recorded.
func (p *PruneStats) GetTable(table string) (TableStats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, exists := p.tables[table]
	if !exists {
		return TableStats{}, false
	}
	statsCopy := TableStats{
		Table:          s.Table,
		Calls:          s.Calls,
		ShardsExamined: s.ShardsExamined,
		ShardsSelected: s.ShardsSelected,
		LastSeen:       s.LastSeen,
		Operators:      make(map[string]int),
	}
	for op, count := range s.Operators {
		statsCopy.Operators[op] = count
	}
	return statsCopy, true
}

// Prune removes tables where time.Since(LastSeen) > window.
// This should be called periodically (e.g., every 5 minutes).
func (p *PruneStats) Prune() {
	p.mu.Lock()
	defer p.mu.Unlock()

	threshold := time.Now().Add(-p.window)
	for table, stats := range p.tables {
		if stats.LastSeen.Before(threshold) {
			delete(p.tables, table)
		}
	}
}
