package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/internal/storage"
)

// snapshotPrefix is where catalog snapshots live in object storage.
const snapshotPrefix = "catalog-snapshots/"

// Snapshot is a point-in-time export of the catalog, suitable for
// bootstrapping a new coordinator or for disaster recovery.
type Snapshot struct {
	SnapshotID string          `json:"snapshot_id"`
	CreatedAt  time.Time       `json:"created_at"`
	Tables     []SnapshotTable `json:"tables"`
}

// SnapshotTable is one table's definition and shard layout.
type SnapshotTable struct {
	TableName       string          `json:"table_name"`
	PartitionColumn string          `json:"partition_column"`
	Method          PartitionMethod `json:"partition_method"`
	Shards          []SnapshotShard `json:"shards"`
}

// SnapshotShard is one persisted shard interval. Bounds use the catalog
// value encoding; empty means NULL.
type SnapshotShard struct {
	ShardID  int64  `json:"shard_id"`
	MinValue string `json:"min_value"`
	MaxValue string `json:"max_value"`
}

// SnapshotManager exports catalog state to object storage and restores
// it. Payloads are JSON compressed with snappy.
type SnapshotManager struct {
	catalog Catalog
	store   storage.ObjectStorage
}

// NewSnapshotManager creates a snapshot manager.
func NewSnapshotManager(catalog Catalog, store storage.ObjectStorage) *SnapshotManager {
	return &SnapshotManager{catalog: catalog, store: store}
}

// Export writes a snapshot of every table to object storage and returns
// the snapshot ID.
func (m *SnapshotManager) Export(ctx context.Context) (string, error) {
	names, err := m.catalog.ListTables(ctx)
	if err != nil {
		return "", fmt.Errorf("metadata: listing tables for snapshot: %w", err)
	}

	snap := Snapshot{
		SnapshotID: uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
	}

	for _, name := range names {
		desc, err := m.catalog.GetTable(ctx, name)
		if err != nil {
			return "", fmt.Errorf("metadata: loading table %s for snapshot: %w", name, err)
		}

		st := SnapshotTable{
			TableName:       desc.TableName,
			PartitionColumn: desc.PartitionColumn,
			Method:          desc.Method,
		}
		for _, si := range desc.AllIntervals() {
			minEnc, err := EncodeValue(si.MinValue)
			if err != nil {
				return "", fmt.Errorf("metadata: encoding shard %d for snapshot: %w", si.ID, err)
			}
			maxEnc, err := EncodeValue(si.MaxValue)
			if err != nil {
				return "", fmt.Errorf("metadata: encoding shard %d for snapshot: %w", si.ID, err)
			}
			st.Shards = append(st.Shards, SnapshotShard{
				ShardID:  si.ID,
				MinValue: minEnc,
				MaxValue: maxEnc,
			})
		}
		snap.Tables = append(snap.Tables, st)
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("metadata: marshaling snapshot: %w", err)
	}
	compressed := snappy.Encode(nil, payload)

	objectPath := snapshotPrefix + snap.SnapshotID + ".snap"
	if err := m.store.Put(ctx, objectPath, compressed); err != nil {
		return "", errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("uploading snapshot %s", snap.SnapshotID), err)
	}

	return snap.SnapshotID, nil
}

// Load fetches and decodes a snapshot from object storage.
func (m *SnapshotManager) Load(ctx context.Context, snapshotID string) (*Snapshot, error) {
	objectPath := snapshotPrefix + snapshotID + ".snap"
	compressed, err := m.store.Get(ctx, objectPath)
	if err != nil {
		if err == storage.ErrObjectNotFound {
			return nil, errors.NewStorageError(errors.CodeObjectNotFound,
				fmt.Sprintf("snapshot %s not found", snapshotID), err)
		}
		return nil, errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("downloading snapshot %s", snapshotID), err)
	}

	payload, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeSnapshotCorrupt,
			fmt.Sprintf("decompressing snapshot %s", snapshotID), err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, errors.NewCatalogError(errors.CodeSnapshotCorrupt,
			fmt.Sprintf("decoding snapshot %s", snapshotID), err)
	}
	return &snap, nil
}

// Restore loads a snapshot and replays it into the catalog. Tables that
// already exist are skipped.
func (m *SnapshotManager) Restore(ctx context.Context, snapshotID string) error {
	snap, err := m.Load(ctx, snapshotID)
	if err != nil {
		return err
	}

	existing, err := m.catalog.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("metadata: listing tables for restore: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	for _, st := range snap.Tables {
		if present[st.TableName] {
			continue
		}
		if err := m.catalog.CreateTable(ctx, st.TableName, st.PartitionColumn, st.Method); err != nil {
			return fmt.Errorf("metadata: restoring table %s: %w", st.TableName, err)
		}
		for _, sh := range st.Shards {
			minVal, err := DecodeValue(sh.MinValue)
			if err != nil {
				return errors.NewCatalogError(errors.CodeSnapshotCorrupt,
					fmt.Sprintf("decoding shard %d in snapshot %s", sh.ShardID, snapshotID), err)
			}
			maxVal, err := DecodeValue(sh.MaxValue)
			if err != nil {
				return errors.NewCatalogError(errors.CodeSnapshotCorrupt,
					fmt.Sprintf("decoding shard %d in snapshot %s", sh.ShardID, snapshotID), err)
			}
			interval := &ShardInterval{ID: sh.ShardID, MinValue: minVal, MaxValue: maxVal}
			if err := m.catalog.AddShard(ctx, st.TableName, interval); err != nil {
				return fmt.Errorf("metadata: restoring shard %d: %w", sh.ShardID, err)
			}
		}
	}

	return nil
}

// ListSnapshots returns the IDs of all stored snapshots.
func (m *SnapshotManager) ListSnapshots(ctx context.Context) ([]string, error) {
	objects, err := m.store.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("metadata: listing snapshots: %w", err)
	}

	ids := make([]string, 0, len(objects))
	for _, obj := range objects {
		name := obj
		if len(name) > len(snapshotPrefix) && name[:len(snapshotPrefix)] == snapshotPrefix {
			name = name[len(snapshotPrefix):]
		}
		if len(name) > 5 && name[len(name)-5:] == ".snap" {
			ids = append(ids, name[:len(name)-5])
		}
	}
	return ids, nil
}
