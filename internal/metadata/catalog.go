package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tessera-db/tessera/internal/errors"
	"github.com/tessera-db/tessera/pkg/types"
)

// Catalog stores distributed table definitions and shard intervals.
type Catalog interface {
	// CreateTable registers a distributed table.
	CreateTable(ctx context.Context, tableName, partitionColumn string, method PartitionMethod) error

	// DropTable removes a table and its shards.
	DropTable(ctx context.Context, tableName string) error

	// AddShard registers a shard interval for a table.
	AddShard(ctx context.Context, tableName string, interval *ShardInterval) error

	// GetTable loads a table's descriptor with its shard intervals
	// sorted and ready for pruning.
	GetTable(ctx context.Context, tableName string) (*TableDescriptor, error)

	// ListTables returns all registered table names.
	ListTables(ctx context.Context) ([]string, error)

	// Close closes the catalog database connections.
	Close() error
}

const catalogSchemaSQL = `
CREATE TABLE IF NOT EXISTS tables (
	table_name       TEXT PRIMARY KEY,
	partition_column TEXT NOT NULL,
	partition_method TEXT NOT NULL,
	created_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS shards (
	shard_id   INTEGER PRIMARY KEY,
	table_name TEXT NOT NULL REFERENCES tables(table_name),
	min_value  TEXT,
	max_value  TEXT
);

CREATE INDEX IF NOT EXISTS idx_shards_table ON shards(table_name);
`

// SQLiteCatalog implements Catalog using SQLite. A single write
// connection serializes mutations; a read pool serves descriptor loads.
type SQLiteCatalog struct {
	db     *sql.DB
	readDB *sql.DB
	dbPath string
	mu     sync.Mutex

	// comparators registered per table for non-default value domains
	comparators   map[string]types.CompareFunc
	comparatorsMu sync.RWMutex
}

// NewCatalog opens (or creates) a catalog database at dbPath.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("metadata: failed to open read connection: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	c := &SQLiteCatalog{
		db:          db,
		readDB:      readDB,
		dbPath:      dbPath,
		comparators: make(map[string]types.CompareFunc),
	}

	if _, err := db.Exec(catalogSchemaSQL); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("metadata: failed to initialize schema: %w", err)
	}

	return c, nil
}

// RegisterComparator sets a custom value comparator for a table's
// partition column domain. Must be called before GetTable.
func (c *SQLiteCatalog) RegisterComparator(tableName string, cmp types.CompareFunc) {
	c.comparatorsMu.Lock()
	defer c.comparatorsMu.Unlock()
	c.comparators[tableName] = cmp
}

// CreateTable registers a distributed table.
func (c *SQLiteCatalog) CreateTable(ctx context.Context, tableName, partitionColumn string, method PartitionMethod) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		"INSERT INTO tables (table_name, partition_column, partition_method, created_at) VALUES (?, ?, ?, ?)",
		tableName, partitionColumn, string(method), time.Now().Unix(),
	)
	if err != nil {
		return errors.NewCatalogError(errors.CodeTableExists,
			fmt.Sprintf("creating table %s", tableName), err)
	}
	return nil
}

// DropTable removes a table and its shards.
func (c *SQLiteCatalog) DropTable(ctx context.Context, tableName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("metadata: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM shards WHERE table_name = ?", tableName); err != nil {
		return fmt.Errorf("metadata: failed to delete shards for %s: %w", tableName, err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM tables WHERE table_name = ?", tableName)
	if err != nil {
		return fmt.Errorf("metadata: failed to delete table %s: %w", tableName, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewCatalogError(errors.CodeTableNotFound,
			fmt.Sprintf("table %s not found", tableName), sql.ErrNoRows)
	}

	return tx.Commit()
}

// AddShard registers a shard interval for a table.
func (c *SQLiteCatalog) AddShard(ctx context.Context, tableName string, interval *ShardInterval) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	minEnc, err := EncodeValue(interval.MinValue)
	if err != nil {
		return fmt.Errorf("metadata: encoding shard %d min bound: %w", interval.ID, err)
	}
	maxEnc, err := EncodeValue(interval.MaxValue)
	if err != nil {
		return fmt.Errorf("metadata: encoding shard %d max bound: %w", interval.ID, err)
	}

	var minArg, maxArg interface{}
	if minEnc != "" {
		minArg = minEnc
	}
	if maxEnc != "" {
		maxArg = maxEnc
	}

	_, err = c.db.ExecContext(ctx,
		"INSERT INTO shards (shard_id, table_name, min_value, max_value) VALUES (?, ?, ?, ?)",
		interval.ID, tableName, minArg, maxArg,
	)
	if err != nil {
		return errors.NewCatalogError(errors.CodeCorruptCatalog,
			fmt.Sprintf("inserting shard %d for table %s", interval.ID, tableName), err)
	}
	return nil
}

// GetTable loads a table's descriptor with its shard intervals sorted and
// ready for pruning.
func (c *SQLiteCatalog) GetTable(ctx context.Context, tableName string) (*TableDescriptor, error) {
	var partitionColumn, methodStr string
	err := c.readDB.QueryRowContext(ctx,
		"SELECT partition_column, partition_method FROM tables WHERE table_name = ?",
		tableName,
	).Scan(&partitionColumn, &methodStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewCatalogError(errors.CodeTableNotFound,
				fmt.Sprintf("table %s not found", tableName), err)
		}
		return nil, fmt.Errorf("metadata: failed to load table %s: %w", tableName, err)
	}

	rows, err := c.readDB.QueryContext(ctx,
		"SELECT shard_id, min_value, max_value FROM shards WHERE table_name = ?",
		tableName,
	)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to load shards for %s: %w", tableName, err)
	}
	defer rows.Close()

	var intervals []*ShardInterval
	for rows.Next() {
		var id int64
		var minEnc, maxEnc sql.NullString
		if err := rows.Scan(&id, &minEnc, &maxEnc); err != nil {
			return nil, fmt.Errorf("metadata: failed to scan shard: %w", err)
		}

		minVal, err := DecodeValue(minEnc.String)
		if err != nil {
			return nil, errors.NewCatalogError(errors.CodeCorruptCatalog,
				fmt.Sprintf("decoding shard %d min bound", id), err)
		}
		maxVal, err := DecodeValue(maxEnc.String)
		if err != nil {
			return nil, errors.NewCatalogError(errors.CodeCorruptCatalog,
				fmt.Sprintf("decoding shard %d max bound", id), err)
		}

		intervals = append(intervals, &ShardInterval{ID: id, MinValue: minVal, MaxValue: maxVal})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata: error iterating shards: %w", err)
	}

	c.comparatorsMu.RLock()
	cmp := c.comparators[tableName]
	c.comparatorsMu.RUnlock()

	return BuildDescriptor(tableName, partitionColumn, PartitionMethod(methodStr), intervals, cmp)
}

// ListTables returns all registered table names.
func (c *SQLiteCatalog) ListTables(ctx context.Context) ([]string, error) {
	rows, err := c.readDB.QueryContext(ctx,
		"SELECT table_name FROM tables ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("metadata: failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata: error iterating tables: %w", err)
	}
	return names, nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}
