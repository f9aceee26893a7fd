package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	terrors "github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/storage"
	"github.com/tessera-db/tessera/pkg/types"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("NewCatalog returned error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_CreateAndGetTable(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.CreateTable(ctx, "events", "event_id", MethodRange); err != nil {
		t.Fatalf("CreateTable returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		err := c.AddShard(ctx, "events", &ShardInterval{
			ID:       int64(10 + i),
			MinValue: types.IntValue(int64(i*100 + 1)),
			MaxValue: types.IntValue(int64((i + 1) * 100)),
		})
		if err != nil {
			t.Fatalf("AddShard returned error: %v", err)
		}
	}

	desc, err := c.GetTable(ctx, "events")
	if err != nil {
		t.Fatalf("GetTable returned error: %v", err)
	}
	if desc.Method != MethodRange {
		t.Errorf("Method = %q, want %q", desc.Method, MethodRange)
	}
	if desc.PartitionColumn != "event_id" {
		t.Errorf("PartitionColumn = %q, want event_id", desc.PartitionColumn)
	}
	if desc.ShardCount() != 3 {
		t.Errorf("ShardCount = %d, want 3", desc.ShardCount())
	}
	if desc.HasOverlappingIntervals {
		t.Error("contiguous intervals flagged as overlapping")
	}
}

func TestCatalog_GetTableNotFound(t *testing.T) {
	c := newTestCatalog(t)

	_, err := c.GetTable(context.Background(), "missing")
	if terrors.GetCode(err) != terrors.CodeTableNotFound {
		t.Errorf("expected TABLE_NOT_FOUND, got %v", err)
	}
}

func TestCatalog_DuplicateTable(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.CreateTable(ctx, "users", "id", MethodHash); err != nil {
		t.Fatal(err)
	}
	err := c.CreateTable(ctx, "users", "id", MethodHash)
	if terrors.GetCode(err) != terrors.CodeTableExists {
		t.Errorf("expected TABLE_EXISTS, got %v", err)
	}
}

func TestCatalog_DropTable(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.CreateTable(ctx, "users", "id", MethodHash); err != nil {
		t.Fatal(err)
	}
	if err := c.AddShard(ctx, "users", &ShardInterval{
		ID:       1,
		MinValue: types.IntValue(0),
		MaxValue: types.IntValue(100),
	}); err != nil {
		t.Fatal(err)
	}

	if err := c.DropTable(ctx, "users"); err != nil {
		t.Fatalf("DropTable returned error: %v", err)
	}
	if _, err := c.GetTable(ctx, "users"); err == nil {
		t.Error("expected error loading dropped table")
	}

	err := c.DropTable(ctx, "users")
	if terrors.GetCode(err) != terrors.CodeTableNotFound {
		t.Errorf("expected TABLE_NOT_FOUND on second drop, got %v", err)
	}
}

func TestCatalog_NullBoundsRoundTrip(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.CreateTable(ctx, "logs", "ts", MethodAppend); err != nil {
		t.Fatal(err)
	}
	if err := c.AddShard(ctx, "logs", &ShardInterval{
		ID:       7,
		MinValue: types.NullValue(),
		MaxValue: types.NullValue(),
	}); err != nil {
		t.Fatal(err)
	}

	desc, err := c.GetTable(ctx, "logs")
	if err != nil {
		t.Fatal(err)
	}
	if len(desc.UninitializedIntervals) != 1 {
		t.Fatalf("expected 1 uninitialized interval, got %d", len(desc.UninitializedIntervals))
	}
	if !desc.UninitializedIntervals[0].MinValue.IsNull() {
		t.Error("expected NULL min bound after round trip")
	}
}

func TestCatalog_ListTables(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha"} {
		if err := c.CreateTable(ctx, name, "id", MethodHash); err != nil {
			t.Fatal(err)
		}
	}

	names, err := c.ListTables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("ListTables = %v, want [alpha zeta]", names)
	}
}

func TestSnapshot_ExportRestore(t *testing.T) {
	ctx := context.Background()

	src := newTestCatalog(t)
	if err := src.CreateTable(ctx, "events", "id", MethodRange); err != nil {
		t.Fatal(err)
	}
	if err := src.AddShard(ctx, "events", &ShardInterval{
		ID:       1,
		MinValue: types.IntValue(1),
		MaxValue: types.IntValue(1000),
	}); err != nil {
		t.Fatal(err)
	}
	if err := src.AddShard(ctx, "events", &ShardInterval{
		ID:       2,
		MinValue: types.IntValue(1001),
		MaxValue: types.IntValue(2000),
	}); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	mgr := NewSnapshotManager(src, store)
	snapID, err := mgr.Export(ctx)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	dst := newTestCatalog(t)
	restoreMgr := NewSnapshotManager(dst, store)
	if err := restoreMgr.Restore(ctx, snapID); err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}

	desc, err := dst.GetTable(ctx, "events")
	if err != nil {
		t.Fatalf("GetTable after restore returned error: %v", err)
	}
	if desc.ShardCount() == 0 {
		t.Error("restored table has no shards")
	}
	if desc.SortedIntervals[0].MinValue.Int != 1 {
		t.Errorf("restored shard min = %v, want 1", desc.SortedIntervals[0].MinValue)
	}

	ids, err := mgr.ListSnapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != snapID {
		t.Errorf("ListSnapshots = %v, want [%s]", ids, snapID)
	}
}

func TestSnapshot_LoadMissing(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mgr := NewSnapshotManager(newTestCatalog(t), store)

	_, err = mgr.Load(context.Background(), "no-such-snapshot")
	if terrors.GetCode(err) != terrors.CodeObjectNotFound {
		t.Errorf("expected OBJECT_NOT_FOUND, got %v", err)
	}
	if !errors.Is(err, &terrors.TesseraError{Category: terrors.ErrCategoryStorage, Code: terrors.CodeObjectNotFound}) {
		t.Errorf("expected storage category error, got %v", err)
	}
}

func TestValueCodecRoundTrip(t *testing.T) {
	values := []types.Value{
		types.IntValue(-42),
		types.FloatValue(3.25),
		types.StringValue("hello"),
		types.BoolValue(true),
		types.NullValue(),
	}
	for _, v := range values {
		enc, err := EncodeValue(v)
		if err != nil {
			t.Fatalf("EncodeValue(%v) returned error: %v", v, err)
		}
		got, err := DecodeValue(enc)
		if err != nil {
			t.Fatalf("DecodeValue(%q) returned error: %v", enc, err)
		}
		if v.IsNull() {
			if !got.IsNull() {
				t.Errorf("NULL did not round trip: got %v", got)
			}
			continue
		}
		if !got.Equal(v) {
			t.Errorf("round trip of %v produced %v", v, got)
		}
	}
}
