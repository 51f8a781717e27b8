// Command seed-db prepares a local database: it runs migrations and loads
// cart items from a JSON file so the ordering endpoints have data to work
// against.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotte-kokodo/order-service/internal/storage/postgres"
)

type cartItemJSON struct {
	MemberID  int64 `json:"memberId"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func main() {
	var (
		databaseURL string
		cartsFile   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cartsFile, "carts-file", "db/seed/carts.json", "path to cart items JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, cartsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, cartsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return seedCarts(ctx, pool, cartsFile)
}

func seedCarts(ctx context.Context, pool *pgxpool.Pool, cartsFile string) error {
	slog.Info("reading cart items file", slog.String("path", cartsFile))

	data, err := os.ReadFile(cartsFile)
	if err != nil {
		return errors.Wrap(err, "read cart items file")
	}

	var items []cartItemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse cart items JSON")
	}

	slog.Info("inserting cart items", slog.Int("count", len(items)))

	for _, item := range items {
		var id int64
		err := pool.QueryRow(ctx,
			`INSERT INTO cart_items (member_id, product_id, quantity, status)
			 VALUES ($1, $2, $3, 'IN_CART') RETURNING id`,
			item.MemberID, item.ProductID, item.Quantity,
		).Scan(&id)
		if err != nil {
			return errors.Wrapf(err, "insert cart item for member %d product %d", item.MemberID, item.ProductID)
		}

		slog.Info("inserted cart item",
			slog.Int64("id", id),
			slog.Int64("member_id", item.MemberID),
			slog.Int64("product_id", item.ProductID),
		)
	}

	return nil
}
