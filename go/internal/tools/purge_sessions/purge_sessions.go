package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/activebits/go/internal/dbconfig"
	"github.com/mcdev12/activebits/go/internal/syncdeck/store"
)

// Config holds purge settings. Flags override the environment.
type Config struct {
	OlderThan time.Duration `env:"SYNCDECK_PURGE_OLDER_THAN" envDefault:"168h"`
	BatchSize int           `env:"SYNCDECK_PURGE_BATCH_SIZE" envDefault:"500"`
}

// database is the part of pgxpool.Pool the purge uses.
type database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const countStale = `SELECT COUNT(*) FROM syncdeck_sessions WHERE updated_at < $1`

const deleteStale = `
DELETE FROM syncdeck_sessions
WHERE session_id IN (
    SELECT session_id FROM syncdeck_sessions
    WHERE updated_at < $1
    LIMIT $2
)`

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse env: %v\n", err)
		os.Exit(1)
	}

	migrate := flag.Bool("migrate", false, "create the syncdeck_sessions table before purging")
	dryRun := flag.Bool("dry-run", false, "count stale sessions without deleting them")
	flag.DurationVar(&cfg.OlderThan, "older-than", cfg.OlderThan, "delete snapshots not updated for this long")
	flag.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "rows deleted per statement")
	flag.Parse()

	if cfg.OlderThan <= 0 || cfg.BatchSize <= 0 {
		fmt.Fprintln(os.Stderr, "older-than and batch-size must be positive")
		os.Exit(2)
	}

	ctx := context.Background()
	dbCfg := dbconfig.NewConfigFromEnv("syncdeck-purge")
	poolCfg, err := pgxpool.ParseConfig(dbCfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid database config: %v\n", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(dbCfg.MaxOpenConns)
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if *migrate {
		if _, err := pool.Exec(ctx, store.Schema); err != nil {
			fmt.Fprintf(os.Stderr, "create schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Schema ready")
	}

	cutoff := time.Now().Add(-cfg.OlderThan)
	if *dryRun {
		n, err := countStaleSessions(ctx, pool, cutoff)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d sessions older than %s would be purged\n", n, cfg.OlderThan)
		return
	}

	deleted, err := purgeStaleSessions(ctx, pool, cutoff, cfg.BatchSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Purge complete: %d sessions older than %s deleted\n", deleted, cfg.OlderThan)
}

func countStaleSessions(ctx context.Context, db database, cutoff time.Time) (int64, error) {
	var n int64
	if err := db.QueryRow(ctx, countStale, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stale sessions: %w", err)
	}
	return n, nil
}

// purgeStaleSessions deletes in batches until a batch comes back short.
func purgeStaleSessions(ctx context.Context, db database, cutoff time.Time, batchSize int) (int64, error) {
	var total int64
	for {
		tag, err := db.Exec(ctx, deleteStale, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("delete stale sessions: %w", err)
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < int64(batchSize) {
			return total, nil
		}
	}
}
