package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/tableside/api/internal/config"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/model"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// CLI flags
	username := flag.String("username", "", "Admin username")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	catalog := flag.Bool("catalog", true, "Seed sample products and rooms when the catalog is empty")
	flag.Parse()

	// Fall back to environment variables, then defaults
	*username = firstNonEmpty(*username, os.Getenv("SEED_USERNAME"), "admin")
	*name = firstNonEmpty(*name, os.Getenv("SEED_NAME"), "Administrator")
	*password = firstNonEmpty(*password, os.Getenv("SEED_PASSWORD"))
	if *password == "" {
		*password = "password123"
		log.Warn().Msg("using default password 'password123', change it before going live")
	}

	cfg := config.Load()
	ctx := context.Background()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	// Seed in a transaction: everything or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	q := database.New(tx)

	admin, err := seedAdmin(ctx, q, *username, *password, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("seed admin")
	}

	if *catalog {
		if err := seedCatalog(ctx, q); err != nil {
			log.Fatal().Err(err).Msg("seed catalog")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("commit")
	}
	log.Info().Str("username", admin.Username).Str("id", admin.ID.String()).Msg("seed completed")
}

// seedAdmin creates the admin user or resets its password.
func seedAdmin(ctx context.Context, q *database.Queries, username, password, fullName string) (model.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	return q.UpsertUser(ctx, model.User{
		Username:       username,
		FullName:       fullName,
		Role:           enum.UserRoleAdmin,
		HashedPassword: string(hashed),
	})
}

// seedCatalog adds a starter menu and a few rooms, skipping an existing menu.
func seedCatalog(ctx context.Context, q *database.Queries) error {
	existing, err := q.ListProducts(ctx, "")
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Int("products", len(existing)).Msg("catalog already seeded, skipping products")
	} else {
		for _, p := range sampleProducts() {
			created, err := q.CreateProduct(ctx, p)
			if err != nil {
				return fmt.Errorf("create product %q: %w", p.Name, err)
			}
			log.Info().Str("name", created.Name).Str("price", created.Price.StringFixed(2)).Msg("created product")
		}
	}

	for _, number := range []string{"101", "102", "201", "202"} {
		if _, err := q.CreateRoom(ctx, model.Room{Number: number}); err != nil {
			return fmt.Errorf("create room %s: %w", number, err)
		}
	}
	return nil
}

func sampleProducts() []model.Product {
	stock := func(n int32) *int32 { return &n }
	price := decimal.RequireFromString
	return []model.Product{
		{Name: "Espresso", Category: "drinks", Price: price("4.50")},
		{Name: "Fresh orange juice", Category: "drinks", Price: price("7.00"), StockQuantity: stock(40)},
		{Name: "Sparkling water", Category: "drinks", Price: price("3.50"), StockQuantity: stock(120)},
		{Name: "Club sandwich", Category: "food", Price: price("18.90")},
		{Name: "Grilled fish", Category: "food", Price: price("42.00"), StockQuantity: stock(12)},
		{Name: "Chocolate cake", Category: "dessert", Price: price("12.50"), StockQuantity: stock(8)},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
