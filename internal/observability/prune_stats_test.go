package observability

import (
	"sync"
	"testing"
	"time"
)

// TestRecordPruneConcurrent tests concurrent RecordPrune calls for race conditions.
func TestRecordPruneConcurrent(t *testing.T) {
	ps := NewPruneStats(1 * time.Hour)
	var wg sync.WaitGroup
	numGoroutines := 10
	recordsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerGoroutine; j++ {
				ps.RecordPrune("events", 8, 2)
				ps.RecordOperator("events", "=")
			}
		}()
	}

	wg.Wait()

	stats, ok := ps.GetTable("events")
	if !ok {
		t.Fatal("expected stats for events")
	}
	expected := int64(numGoroutines * recordsPerGoroutine)
	if stats.Calls != expected {
		t.Errorf("expected %d calls, got %d", expected, stats.Calls)
	}
	if stats.ShardsExamined != expected*8 || stats.ShardsSelected != expected*2 {
		t.Errorf("shard counters off: examined %d selected %d", stats.ShardsExamined, stats.ShardsSelected)
	}
	if stats.Operators["="] != int(expected) {
		t.Errorf("expected %d '=' operators, got %d", expected, stats.Operators["="])
	}
}

// TestPruneRatio tests the derived pruning ratio.
func TestPruneRatio(t *testing.T) {
	ps := NewPruneStats(1 * time.Hour)

	ps.RecordPrune("events", 8, 2)
	stats, _ := ps.GetTable("events")
	if got := stats.PruneRatio(); got != 0.75 {
		t.Errorf("expected ratio 0.75, got %v", got)
	}

	empty := TableStats{}
	if empty.PruneRatio() != 0 {
		t.Error("expected zero ratio with no data")
	}
}

// TestGetTopTablesOrdering tests that GetTopTables returns results sorted by call count.
func TestGetTopTablesOrdering(t *testing.T) {
	ps := NewPruneStats(1 * time.Hour)

	for i := 0; i < 20; i++ {
		ps.RecordPrune("events", 4, 1)
	}
	for i := 0; i < 10; i++ {
		ps.RecordPrune("users", 4, 1)
	}
	for i := 0; i < 5; i++ {
		ps.RecordPrune("orders", 4, 1)
	}

	top := ps.GetTopTables(3)
	if len(top) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(top))
	}
	if top[0].Table != "events" || top[0].Calls != 20 {
		t.Errorf("expected events with 20 calls, got %s with %d", top[0].Table, top[0].Calls)
	}
	if top[1].Table != "users" || top[1].Calls != 10 {
		t.Errorf("expected users with 10 calls, got %s with %d", top[1].Table, top[1].Calls)
	}
	if top[2].Table != "orders" || top[2].Calls != 5 {
		t.Errorf("expected orders with 5 calls, got %s with %d", top[2].Table, top[2].Calls)
	}
}

// TestGetTopTablesEmpty tests GetTopTables with no data.
func TestGetTopTablesEmpty(t *testing.T) {
	ps := NewPruneStats(1 * time.Hour)
	if top := ps.GetTopTables(10); len(top) != 0 {
		t.Errorf("expected 0 tables, got %d", len(top))
	}
	if _, ok := ps.GetTable("missing"); ok {
		t.Error("expected no stats for unknown table")
	}
}

// TestPruneRemovesIdleTables tests that Prune removes tables idle longer than the window.
func TestPruneRemovesIdleTables(t *testing.T) {
	window := 100 * time.Millisecond
	ps := NewPruneStats(window)

	ps.RecordPrune("events", 4, 1)
	if top := ps.GetTopTables(10); len(top) != 1 {
		t.Fatalf("expected 1 table before prune, got %d", len(top))
	}

	time.Sleep(window + 50*time.Millisecond)
	ps.Prune()

	if top := ps.GetTopTables(10); len(top) != 0 {
		t.Errorf("expected 0 tables after prune, got %d", len(top))
	}
}

// TestGetTopTablesCopyIsolation tests that returned stats cannot mutate internal state.
func TestGetTopTablesCopyIsolation(t *testing.T) {
	ps := NewPruneStats(1 * time.Hour)
	ps.RecordOperator("events", "=")

	top := ps.GetTopTables(1)
	top[0].Operators["="] = 999

	stats, _ := ps.GetTable("events")
	if stats.Operators["="] != 1 {
		t.Errorf("internal operator count mutated: %d", stats.Operators["="])
	}
}
