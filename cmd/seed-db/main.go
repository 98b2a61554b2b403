// Command seed-db applies migrations and loads the demo catalog, sample
// coupons and an administrator API key.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type config struct {
	DatabaseURL  string `usage:"PostgreSQL connection URL (or DATABASE_URL)" flag:"database-url"`
	ProductsFile string `default:"db/seed/products.json" usage:"Products JSON file" flag:"products-file"`
	APIKey       string `usage:"Administrator API key to seed" flag:"api-key" env:"SEED_API_KEY"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	SkipCoupons  bool   `default:"false" usage:"Do not seed sample coupons" flag:"skip-coupons"`
}

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
	Featured    bool            `json:"featured"`
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
	case cfg.APIKey == "":
		lg.Fatal("API key is required: set --api-key or STORE_SEED_API_KEY")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool), cfg.ProductsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if !cfg.SkipCoupons {
		if err := seedCoupons(ctx, lg, postgres.NewCouponRepository(pool)); err != nil {
			return errors.Wrap(err, "seed coupons")
		}
	}

	key := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(cfg.APIKeyPepper), cfg.APIKey),
		Name:    "Default administrator key",
		Scopes:  []string{auth.ScopeAdmin},
	}
	if err := postgres.NewAPIKeyRepository(pool).Upsert(ctx, key); err != nil {
		return errors.Wrap(err, "upsert api key")
	}
	lg.Info("Upserted API key", zap.String("id", key.ID), zap.Strings("scopes", key.Scopes))
	return nil
}

func loadProducts(path string) ([]product.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}
	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse products file")
	}

	now := time.Now()
	out := make([]product.Product, 0, len(raw))
	for _, p := range raw {
		in := product.Input{Name: p.Name, Price: p.Price, Stock: p.Stock}
		if p.ID == "" {
			return nil, errors.Errorf("product %q: id is required", p.Name)
		}
		if err := in.Check(); err != nil {
			return nil, errors.Wrapf(err, "product %s", p.ID)
		}
		out = append(out, product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Stock:       p.Stock,
			Category:    p.Category,
			Images:      p.Images,
			Featured:    p.Featured,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out, nil
}

// seedProducts creates missing products and overwrites existing ones, so
// running the seed twice is harmless.
func seedProducts(ctx context.Context, lg *zap.Logger, repo product.Repository, path string) error {
	products, err := loadProducts(path)
	if err != nil {
		return err
	}
	lg.Info("Upserting products", zap.String("path", path), zap.Int("count", len(products)))

	for i := range products {
		p := &products[i]
		existing, err := repo.GetByID(ctx, p.ID)
		switch {
		case errors.Is(err, product.ErrNotFound):
			err = repo.Create(ctx, p)
		case err == nil:
			p.CreatedAt = existing.CreatedAt
			err = repo.Update(ctx, p)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		lg.Debug("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}
	return nil
}

func intPtr(v int) *int { return &v }

var sampleCoupons = []coupon.Input{
	{Code: "WELCOME10", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(10), Active: true},
	{Code: "SUMMER20", Kind: coupon.KindPercentage, Value: decimal.NewFromInt(20), MinOrder: decimal.NewFromInt(5000), Active: true},
	{Code: "FLAT500", Kind: coupon.KindFixed, Value: decimal.NewFromInt(500), MinOrder: decimal.NewFromInt(3000), MaxUses: intPtr(100), Active: true},
}

// seedCoupons creates the sample coupons that do not exist yet. Existing
// ones are left alone so their used counts survive.
func seedCoupons(ctx context.Context, lg *zap.Logger, repo coupon.Repository) error {
	svc := coupon.NewService(repo)
	for _, in := range sampleCoupons {
		c, err := svc.Create(ctx, in)
		if errors.Is(err, coupon.ErrDuplicateCode) {
			lg.Debug("Coupon exists", zap.String("code", in.Code))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "create coupon %s", in.Code)
		}
		lg.Info("Created coupon", zap.String("code", c.Code), zap.String("kind", string(c.Kind)), zap.Stringer("value", c.Value))
	}
	return nil
}
