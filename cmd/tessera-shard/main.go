// Package main implements the tessera-shard catalog administration tool.
// It registers distributed tables, lays out their shard intervals, and
// exports or restores catalog snapshots.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/tessera-db/tessera/internal/config"
	"github.com/tessera-db/tessera/internal/metadata"
	"github.com/tessera-db/tessera/internal/partition"
	"github.com/tessera-db/tessera/internal/storage"
	"github.com/tessera-db/tessera/pkg/types"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "create-table":
		runCreateTable(args)
	case "add-shard":
		runAddShard(args)
	case "create-hash-shards":
		runCreateHashShards(args)
	case "drop-table":
		runDropTable(args)
	case "list":
		runList(args)
	case "snapshot":
		runSnapshot(args)
	case "version":
		fmt.Printf("tessera-shard version %s (commit: %s)\n", version, commit)
	case "help", "-h", "--help":
		usage()
	default:
		log.Printf("unknown command: %s", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Tessera - shard catalog administration\n\n")
	fmt.Fprintf(os.Stderr, "Usage: tessera-shard <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  create-table        Register a distributed table\n")
	fmt.Fprintf(os.Stderr, "  add-shard           Add one shard interval to a table\n")
	fmt.Fprintf(os.Stderr, "  create-hash-shards  Lay out N evenly tiled hash shards\n")
	fmt.Fprintf(os.Stderr, "  drop-table          Remove a table and its shards\n")
	fmt.Fprintf(os.Stderr, "  list                List tables and their shard layouts\n")
	fmt.Fprintf(os.Stderr, "  snapshot            Export, restore, or list catalog snapshots\n")
	fmt.Fprintf(os.Stderr, "  version             Show version information\n")
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  TESSERA_DATA_DIR       Base directory for data files\n")
	fmt.Fprintf(os.Stderr, "  TESSERA_CATALOG_PATH   SQLite catalog database path\n")
	fmt.Fprintf(os.Stderr, "  TESSERA_STORAGE_TYPE   Snapshot storage type (local, s3)\n")
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet) (configFile, dataDir *string) {
	configFile = fs.String("config", "", "Path to configuration file (YAML or JSON)")
	dataDir = fs.String("data-dir", "", "Base directory for all data files")
	return configFile, dataDir
}

func loadConfig(configFile, dataDir string) *config.Config {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	cfg.Resolve()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}
	return cfg
}

func openCatalog(cfg *config.Config) *metadata.SQLiteCatalog {
	catalog, err := metadata.NewCatalog(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	return catalog
}

func openStorage(ctx context.Context, cfg *config.Config) storage.ObjectStorage {
	switch cfg.Storage.Type {
	case "s3":
		store, err := storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:   cfg.Storage.S3.Region,
			Endpoint: cfg.Storage.S3.Endpoint,
		})
		if err != nil {
			log.Fatalf("Failed to open S3 storage: %v", err)
		}
		return store
	default:
		store, err := storage.NewLocalStorage(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open local storage: %v", err)
		}
		return store
	}
}

func runCreateTable(args []string) {
	fs := flag.NewFlagSet("create-table", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	column := fs.String("column", "", "Partition column name")
	method := fs.String("method", "hash", "Partition method: none, hash, range, append")
	fs.Parse(args)

	if *table == "" {
		log.Fatal("--table is required")
	}
	m := metadata.PartitionMethod(*method)
	switch m {
	case metadata.MethodNone, metadata.MethodHash, metadata.MethodRange, metadata.MethodAppend:
	default:
		log.Fatalf("invalid method: %s (must be none, hash, range, or append)", *method)
	}
	if m != metadata.MethodNone && *column == "" {
		log.Fatal("--column is required for partitioned tables")
	}

	cfg := loadConfig(*configFile, *dataDir)
	catalog := openCatalog(cfg)
	defer catalog.Close()

	if err := catalog.CreateTable(context.Background(), *table, *column, m); err != nil {
		log.Fatalf("Failed to create table: %v", err)
	}
	fmt.Printf("created table %s (method=%s, column=%s)\n", *table, m, *column)
}

func runAddShard(args []string) {
	fs := flag.NewFlagSet("add-shard", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	shardID := fs.Int64("id", 0, "Shard ID")
	minStr := fs.String("min", "", "Minimum bound (empty for NULL)")
	maxStr := fs.String("max", "", "Maximum bound (empty for NULL)")
	kind := fs.String("kind", "int", "Bound value kind: int, float, string")
	fs.Parse(args)

	if *table == "" || *shardID == 0 {
		log.Fatal("--table and --id are required")
	}

	minVal, err := parseBound(*minStr, *kind)
	if err != nil {
		log.Fatalf("Invalid --min: %v", err)
	}
	maxVal, err := parseBound(*maxStr, *kind)
	if err != nil {
		log.Fatalf("Invalid --max: %v", err)
	}

	cfg := loadConfig(*configFile, *dataDir)
	catalog := openCatalog(cfg)
	defer catalog.Close()

	interval := &metadata.ShardInterval{ID: *shardID, MinValue: minVal, MaxValue: maxVal}
	if err := catalog.AddShard(context.Background(), *table, interval); err != nil {
		log.Fatalf("Failed to add shard: %v", err)
	}
	fmt.Printf("added shard %d to %s [%s, %s]\n", *shardID, *table, minVal, maxVal)
}

func runCreateHashShards(args []string) {
	fs := flag.NewFlagSet("create-hash-shards", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	count := fs.Int("count", 32, "Number of hash shards")
	firstID := fs.Int64("first-id", 1, "Shard ID of the first shard")
	fs.Parse(args)

	if *table == "" {
		log.Fatal("--table is required")
	}

	ranges, err := partition.CreateHashRanges(*count)
	if err != nil {
		log.Fatalf("Failed to compute hash ranges: %v", err)
	}

	cfg := loadConfig(*configFile, *dataDir)
	catalog := openCatalog(cfg)
	defer catalog.Close()

	ctx := context.Background()
	for i, r := range ranges {
		interval := &metadata.ShardInterval{
			ID:       *firstID + int64(i),
			MinValue: types.IntValue(int64(r.Min)),
			MaxValue: types.IntValue(int64(r.Max)),
		}
		if err := catalog.AddShard(ctx, *table, interval); err != nil {
			log.Fatalf("Failed to add shard %d: %v", interval.ID, err)
		}
	}
	fmt.Printf("created %d hash shards for %s\n", *count, *table)
}

func runDropTable(args []string) {
	fs := flag.NewFlagSet("drop-table", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	table := fs.String("table", "", "Table name")
	fs.Parse(args)

	if *table == "" {
		log.Fatal("--table is required")
	}

	cfg := loadConfig(*configFile, *dataDir)
	catalog := openCatalog(cfg)
	defer catalog.Close()

	if err := catalog.DropTable(context.Background(), *table); err != nil {
		log.Fatalf("Failed to drop table: %v", err)
	}
	fmt.Printf("dropped table %s\n", *table)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	fs.Parse(args)

	cfg := loadConfig(*configFile, *dataDir)
	catalog := openCatalog(cfg)
	defer catalog.Close()

	ctx := context.Background()
	names, err := catalog.ListTables(ctx)
	if err != nil {
		log.Fatalf("Failed to list tables: %v", err)
	}

	for _, name := range names {
		desc, err := catalog.GetTable(ctx, name)
		if err != nil {
			log.Fatalf("Failed to load table %s: %v", name, err)
		}
		fmt.Printf("%s (method=%s, column=%s, shards=%d)\n",
			desc.TableName, desc.Method, desc.PartitionColumn, desc.ShardCount())
		for _, si := range desc.AllIntervals() {
			fmt.Printf("  shard %d: [%s, %s]\n", si.ID, si.MinValue, si.MaxValue)
		}
	}
}

func runSnapshot(args []string) {
	if len(args) < 1 {
		log.Fatal("usage: tessera-shard snapshot <export|restore|list> [options]")
	}
	sub := args[0]

	fs := flag.NewFlagSet("snapshot "+sub, flag.ExitOnError)
	configFile, dataDir := commonFlags(fs)
	snapshotID := fs.String("id", "", "Snapshot ID (for restore)")
	fs.Parse(args[1:])

	cfg := loadConfig(*configFile, *dataDir)
	catalog := openCatalog(cfg)
	defer catalog.Close()

	ctx := context.Background()
	manager := metadata.NewSnapshotManager(catalog, openStorage(ctx, cfg))

	switch sub {
	case "export":
		id, err := manager.Export(ctx)
		if err != nil {
			log.Fatalf("Failed to export snapshot: %v", err)
		}
		fmt.Printf("exported snapshot %s\n", id)
	case "restore":
		if *snapshotID == "" {
			log.Fatal("--id is required for restore")
		}
		if err := manager.Restore(ctx, *snapshotID); err != nil {
			log.Fatalf("Failed to restore snapshot: %v", err)
		}
		fmt.Printf("restored snapshot %s\n", *snapshotID)
	case "list":
		ids, err := manager.ListSnapshots(ctx)
		if err != nil {
			log.Fatalf("Failed to list snapshots: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	default:
		log.Fatalf("unknown snapshot command: %s", sub)
	}
}

// parseBound converts a flag value into a typed bound. Empty input is
// NULL, which marks an uninitialized interval side.
func parseBound(s, kind string) (types.Value, error) {
	if s == "" {
		return types.NullValue(), nil
	}
	switch kind {
	case "int":
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.IntValue(n), nil
	case "float":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.Value{}, err
		}
		return types.FloatValue(f), nil
	case "string":
		return types.StringValue(s), nil
	default:
		return types.Value{}, fmt.Errorf("unknown value kind %q", kind)
	}
}
