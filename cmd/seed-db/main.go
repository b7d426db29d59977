// Command seed-db provisions a database with the storefront's standing
// discount definitions and a default admin API key. It is idempotent: running
// it twice leaves existing rows in place.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tortilleria/promo-service/internal/domain/discount"
	"github.com/tortilleria/promo-service/internal/handler"
	"github.com/tortilleria/promo-service/internal/repository"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or PROMO_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PROMO_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PROMO_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or PROMO_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PROMO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedDefinitions(ctx, repository.NewDefinitionRepository(pool)); err != nil {
		return errors.Wrap(err, "seed definitions")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func standingDefinitions(now time.Time) ([]*discount.Definition, error) {
	var defs []*discount.Definition

	build := func(b *discount.Builder) error {
		def, err := b.Build(now)
		if err != nil {
			return err
		}
		defs = append(defs, def)
		return nil
	}

	if err := build(discount.NewBuilder("SAVE10", "10% off your order").
		Description("Storewide 10% discount").
		Percentage(10, 0, 0).
		UsageLimits(0, 3)); err != nil {
		return nil, err
	}

	if err := build(discount.NewBuilder("WELCOME10", "Welcome: $10 off first order").
		Description("$10 off for new customers").
		FixedAmount(1000, 2500).
		FirstOrderOnly()); err != nil {
		return nil, err
	}

	if err := build(discount.NewBuilder("BOGO-FLOUR", "Buy 2 corn, get 1 flour half off").
		Description("Cross-product tortilla bundle").
		Bogo("TORT-CORN", 2, "TORT-FLOUR", 1, 50)); err != nil {
		return nil, err
	}

	if err := build(discount.NewBuilder("WHOLESALE15", "Wholesale partner discount").
		Description("15% off orders over $200 for wholesale accounts").
		Source(discount.SourceWholesale).
		MinOrder(20000).
		Percentage(15, 10000, 0).
		UsageLimits(0, 100).
		Priority(10)); err != nil {
		return nil, err
	}

	return defs, nil
}

func seedDefinitions(ctx context.Context, repo *repository.DefinitionRepository) error {
	defs, err := standingDefinitions(time.Now().UTC())
	if err != nil {
		return err
	}

	slog.Info("seeding discount definitions", slog.Int("count", len(defs)))

	for _, def := range defs {
		if _, err := repo.FindByCode(ctx, def.Code); err == nil {
			slog.Info("definition exists, skipping", slog.String("code", def.Code))
			continue
		} else if !errors.Is(err, discount.ErrNotFound) {
			return errors.Wrapf(err, "check definition %s", def.Code)
		}

		if err := repo.Create(ctx, def); err != nil {
			return errors.Wrapf(err, "create definition %s", def.Code)
		}

		slog.Info("created definition", slog.String("code", def.Code), slog.String("name", def.Name))
	}

	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (key_hash, name, scopes, active)
	VALUES ($1, $2, $3, TRUE)
	ON CONFLICT (key_hash) DO UPDATE SET active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	keyHash := handler.HashKey([]byte(pepper), apiKey)
	_, err := pool.Exec(ctx, upsertAPIKeySQL, keyHash, "Default admin key", []string{"admin"})
	if err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("name", "Default admin key"))
	return nil
}
