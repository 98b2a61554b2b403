// Command coupon-ingest bulk-loads coupons from CSV files, plain or
// gzip-compressed, into the coupon store.
//
// Each file starts with a header naming the columns; code and kind are
// required, the rest are optional:
//
//	code,kind,value,min_order,max_uses,expires_at
//	SPRING15,percentage,15,2000,,2026-06-01T00:00:00Z
//
// Codes already present in the store are skipped. Within the input the first
// occurrence of a code wins.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/storage/postgres"
)

type config struct {
	DatabaseURL string   `usage:"PostgreSQL connection URL (or DATABASE_URL)" flag:"database-url"`
	Files       []string `usage:"Comma-separated CSV files; .gz files are decompressed" flag:"files"`
	Workers     int      `default:"8" usage:"Concurrent inserts" flag:"workers"`
	DryRun      bool     `default:"false" usage:"Parse and report without writing" flag:"dry-run"`
}

func main() {
	lg := zap.Must(zap.NewDevelopment())
	defer func() { _ = lg.Sync() }()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{EnvPrefix: "STORE", SkipFiles: true}).Load(); err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	switch {
	case cfg.DatabaseURL == "":
		lg.Fatal("Database URL is required: set --database-url, STORE_DATABASE_URL or DATABASE_URL")
	case len(cfg.Files) == 0:
		lg.Fatal("No input: set --files")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Coupon ingest failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	ing := &ingester{
		repo:    postgres.NewCouponRepository(pool),
		lg:      lg,
		workers: cfg.Workers,
		dryRun:  cfg.DryRun,
	}
	st, err := ing.Run(ctx, cfg.Files)
	if err != nil {
		return err
	}
	lg.Info("Coupon ingest completed",
		zap.Int("read", st.Read),
		zap.Int("invalid", st.Invalid),
		zap.Int("duplicates", st.Duplicates),
		zap.Int("existing", st.Existing),
		zap.Int64("created", st.Created.Load()),
		zap.Bool("dry_run", cfg.DryRun),
	)
	return nil
}
