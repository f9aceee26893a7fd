// Package main implements the tessera-prune tool. It evaluates a filter
// expression against a table's shard layout and prints the shards a
// query with that filter would have to visit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tessera-db/tessera/internal/config"
	"github.com/tessera-db/tessera/internal/metadata"
	"github.com/tessera-db/tessera/internal/observability"
	"github.com/tessera-db/tessera/internal/pruning"
	"github.com/tessera-db/tessera/internal/query/parser"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	log.SetFlags(0)

	var (
		configFile  string
		dataDir     string
		table       string
		filter      string
		trace       bool
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&table, "table", "", "Table name")
	flag.StringVar(&filter, "filter", "", "Filter expression, e.g. \"a = 5 AND b > 10\"")
	flag.BoolVar(&trace, "trace", false, "Log normalization and strategy selection")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Tessera - shard pruning for distributed tables\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tessera-prune --table <name> [--filter <expr>] [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tessera-prune --table events --filter \"tenant_id = 42\"\n")
		fmt.Fprintf(os.Stderr, "  tessera-prune --table events --filter \"ts >= 100 AND ts < 200\"\n")
		fmt.Fprintf(os.Stderr, "  tessera-prune --table users --filter \"id IN (1, 2, 3)\" --trace\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("tessera-prune version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if table == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := loadConfig(configFile, dataDir)
	pruning.SetTraceLogging(trace || cfg.Pruning.Trace)

	catalog, err := metadata.NewCatalog(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer catalog.Close()

	desc, err := catalog.GetTable(context.Background(), table)
	if err != nil {
		log.Fatalf("Failed to load table: %v", err)
	}

	var filters []parser.Expression
	if filter != "" {
		expr, err := parser.ParseFilter(filter)
		if err != nil {
			log.Fatalf("Failed to parse filter: %v", err)
		}
		filters = parser.SplitConjuncts(expr)
	}

	shards, value, err := pruning.PruneShards(desc, filters)
	if err != nil {
		log.Fatalf("Pruning failed: %v", err)
	}

	stats := observability.NewPruneStats(time.Hour)
	stats.RecordPrune(desc.TableName, desc.ShardCount(), len(shards))
	for _, op := range filterOperators(filters) {
		stats.RecordOperator(desc.TableName, op)
	}

	fmt.Printf("table %s: %d of %d shards selected\n", desc.TableName, len(shards), desc.ShardCount())
	for _, si := range shards {
		fmt.Printf("  shard %d: [%s, %s]\n", si.ID, si.MinValue, si.MaxValue)
	}
	if value != nil {
		fmt.Printf("partition column pinned to %s\n", value)
	}
	if ts, ok := stats.GetTable(desc.TableName); ok {
		fmt.Printf("pruning ratio: %.2f\n", ts.PruneRatio())
	}
}

// filterOperators extracts the top-level operator names of the filter
// list for workload statistics.
func filterOperators(filters []parser.Expression) []string {
	var ops []string
	for _, f := range filters {
		switch e := f.(type) {
		case *parser.ComparisonExpr:
			ops = append(ops, e.Op.String())
		case *parser.InExpr:
			if e.Not {
				ops = append(ops, "NOT IN")
			} else {
				ops = append(ops, "IN")
			}
		case *parser.LogicalExpr:
			ops = append(ops, e.Op.String())
		case *parser.NotExpr:
			ops = append(ops, "NOT")
		}
	}
	return ops
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
	return cfg
}
