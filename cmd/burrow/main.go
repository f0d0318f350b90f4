// Package main implements the burrow admin binary: catalog inspection and
// maintenance against a local store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/burrowdb/burrow/internal/archive"
	"github.com/burrowdb/burrow/internal/catalog"
	"github.com/burrowdb/burrow/internal/config"
	"github.com/burrowdb/burrow/internal/logging"
	"github.com/burrowdb/burrow/internal/observability"
	"github.com/burrowdb/burrow/internal/persist"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		mode        string
		table       string
		number      uint
		showStats   bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&mode, "mode", "list", "Operation: list, create, delete, count, import, export")
	flag.StringVar(&table, "table", "", "Table name for table-scoped operations")
	flag.UintVar(&number, "number", 0, "Table number override for import")
	flag.BoolVar(&showStats, "stats", false, "Print operation statistics after the command")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Burrow - Transactional Document Database Admin Tool\n\n")
		fmt.Fprintf(os.Stderr, "Usage: burrow [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  burrow --data-dir /data/burrow --mode list\n")
		fmt.Fprintf(os.Stderr, "  burrow --mode create --table users\n")
		fmt.Fprintf(os.Stderr, "  burrow --mode count --table users\n")
		fmt.Fprintf(os.Stderr, "  burrow --mode import --table users --number 10050\n")
		fmt.Fprintf(os.Stderr, "  burrow --mode export --table users\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  BURROW_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  BURROW_LOG_LEVEL      Log level (debug, info, warn, error)\n")
		fmt.Fprintf(os.Stderr, "  BURROW_LOG_SEQ_URL    Optional Seq ingestion endpoint\n")
		fmt.Fprintf(os.Stderr, "  BURROW_ARCHIVE_TYPE   Archive storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  BURROW_S3_BUCKET      S3 bucket for archives\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("burrow version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, cleanup := logging.Setup(logging.Options{
		Level:  parseLevel(cfg.Log.Level),
		SeqURL: cfg.Log.SeqURL,
	})
	defer cleanup()

	tool, err := newAdminTool(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer tool.Close()

	if err := tool.Run(context.Background(), mode, table, number); err != nil {
		log.Fatalf("%s failed: %v", mode, err)
	}

	if showStats {
		tool.PrintStats(os.Stdout)
	}
}

// loadConfig loads configuration from file, environment, and flags.
func loadConfig(configFile, dataDir string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
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
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openArchive(ctx context.Context, cfg *config.Config) (archive.ObjectStorage, error) {
	if cfg.Archive.Type == "s3" {
		return archive.NewS3Storage(ctx, cfg.Archive.S3.Bucket, archive.S3Config{
			Region:       cfg.Archive.S3.Region,
			Endpoint:     cfg.Archive.S3.Endpoint,
			UsePathStyle: cfg.Archive.S3.UsePathStyle,
		})
	}
	return archive.NewLocalStorage(cfg.Archive.Path)
}

// adminTool bundles the opened store with the pieces the commands need.
type adminTool struct {
	cfg    *config.Config
	logger *slog.Logger
	p      *persist.Store
	store  *txn.Store
	bs     *catalog.Bootstrap
	stats  *observability.OpStats
}

func newAdminTool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*adminTool, error) {
	p, err := persist.Open(cfg.StorePath())
	if err != nil {
		return nil, err
	}
	store, err := txn.NewStore(ctx, p, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	bs, err := catalog.Open(ctx, store, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	return &adminTool{
		cfg:    cfg,
		logger: logger,
		p:      p,
		store:  store,
		bs:     bs,
		stats:  observability.NewOpStats(time.Hour),
	}, nil
}

func (a *adminTool) Close() error {
	return a.p.Close()
}

// Run dispatches one admin command.
func (a *adminTool) Run(ctx context.Context, mode, table string, number uint) (err error) {
	start := time.Now()
	defer func() { a.stats.Record(mode, time.Since(start), err) }()

	switch mode {
	case "list":
		return a.runList(ctx)
	case "create", "delete", "count":
		name, nameErr := types.NewTableName(table)
		if nameErr != nil {
			return fmt.Errorf("invalid table name %q: %w", table, nameErr)
		}
		switch mode {
		case "create":
			return a.runCreate(ctx, name)
		case "delete":
			return a.runDelete(ctx, name)
		default:
			return a.runCount(ctx, name)
		}
	case "import":
		name, nameErr := types.NewTableName(table)
		if nameErr != nil {
			return fmt.Errorf("invalid table name %q: %w", table, nameErr)
		}
		return a.runImport(ctx, name, number)
	case "export":
		return a.runExport(ctx, table)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func (a *adminTool) runList(ctx context.Context) error {
	tx, err := a.store.Begin(ctx)
	if err != nil {
		return err
	}
	m := catalog.NewTableModel(tx, a.bs, a.logger)

	entries, err := m.AllTables(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%-32s %8s  %-8s  %s\n", "NAME", "NUMBER", "STATE", "DOCUMENTS")
	for _, e := range entries {
		var count string
		if e.Meta.State == types.TableStateActive {
			n, err := m.Count(ctx, e.Meta.Name)
			if err != nil {
				return err
			}
			count = fmt.Sprintf("%d", n)
		} else {
			count = "-"
		}
		fmt.Printf("%-32s %8d  %-8s  %s\n", e.Meta.Name, e.Meta.Number, e.Meta.State, count)
	}
	return nil
}

func (a *adminTool) runCreate(ctx context.Context, name types.TableName) error {
	tx, err := a.store.Begin(ctx)
	if err != nil {
		return err
	}
	m := catalog.NewTableModel(tx, a.bs, a.logger)
	if err := m.InsertTableMetadata(ctx, name); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	fmt.Printf("created table %s\n", name)
	return nil
}

func (a *adminTool) runDelete(ctx context.Context, name types.TableName) error {
	tx, err := a.store.Begin(ctx)
	if err != nil {
		return err
	}
	m := catalog.NewTableModel(tx, a.bs, a.logger)
	if err := m.DeleteTable(ctx, name); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	fmt.Printf("deleted table %s\n", name)
	return nil
}

func (a *adminTool) runCount(ctx context.Context, name types.TableName) error {
	tx, err := a.store.Begin(ctx)
	if err != nil {
		return err
	}
	m := catalog.NewTableModel(tx, a.bs, a.logger)
	count, err := m.Count(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d documents\n", name, count)
	return nil
}

// runImport stages a Hidden table and activates it in one transaction,
// superseding any existing table with the same name.
func (a *adminTool) runImport(ctx context.Context, name types.TableName, number uint) error {
	override, err := parseTableNumber(number)
	if err != nil {
		return err
	}

	tx, err := a.store.Begin(ctx)
	if err != nil {
		return err
	}
	m := catalog.NewTableModel(tx, a.bs, a.logger)

	batch := catalog.NewImportBatch(name)
	tablet, tableNumber, err := m.InsertTableForImport(ctx, name, override, batch)
	if err != nil {
		return err
	}
	deleted, err := m.ActivateTable(ctx, tablet, name, tableNumber, batch)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	fmt.Printf("imported table %s (number %d, %d documents superseded)\n", name, tableNumber, deleted)
	return nil
}

// parseTableNumber validates a --number flag value; zero means unset. Table
// numbers are 32-bit, so larger flag values are rejected rather than
// truncated.
func parseTableNumber(number uint) (*types.TableNumber, error) {
	if number == 0 {
		return nil, nil
	}
	if uint64(number) > math.MaxUint32 {
		return nil, fmt.Errorf("table number %d out of range (max %d)", number, uint64(math.MaxUint32))
	}
	n := types.TableNumber(number)
	return &n, nil
}

func (a *adminTool) runExport(ctx context.Context, table string) error {
	storage, err := openArchive(ctx, a.cfg)
	if err != nil {
		return err
	}
	exporter := archive.NewExporter(a.store, a.bs, storage, a.cfg.Archive.Prefix, a.logger)

	if table == "" {
		objects, err := exporter.ExportAll(ctx)
		if err != nil {
			return err
		}
		for _, obj := range objects {
			fmt.Printf("exported %s\n", obj)
		}
		return nil
	}

	name, err := types.NewTableName(table)
	if err != nil {
		return fmt.Errorf("invalid table name %q: %w", table, err)
	}
	objectPath, n, err := exporter.ExportTable(ctx, name)
	if err != nil {
		return err
	}
	fmt.Printf("exported %s (%d documents)\n", objectPath, n)
	return nil
}

// PrintStats prints per-operation timing collected during this run.
func (a *adminTool) PrintStats(w *os.File) {
	fmt.Fprintf(w, "\n%-12s %6s %6s %12s %12s\n", "OPERATION", "CALLS", "FAILED", "MEAN", "MAX")
	for _, s := range a.stats.Snapshot() {
		fmt.Fprintf(w, "%-12s %6d %6d %12s %12s\n",
			s.Operation, s.Calls, s.Failures, s.Mean(), s.Max)
	}
}
