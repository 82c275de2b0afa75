package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"moneybook/internal/appmanager"
	"moneybook/internal/seed"
)

// InitPool builds the shared pgx pool from env vars
func InitPool(ctx context.Context) (*pgxpool.Pool, error) {
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, pass, host, port, name)
	return pgxpool.New(ctx, dsn)
}

func main() {
	// Load .env for local dev
	_ = godotenv.Load("../.env")

	ctx := context.Background()
	pool, err := InitPool(ctx)
	if err != nil {
		log.Fatal("failed to connect to DB:", err)
	}
	defer pool.Close()
	appmanager.SetPgxPool(pool)

	// First boot on an empty database gets the bundled seed data
	seedDir := os.Getenv("SEED_DIR")
	if seedDir == "" {
		seedDir = "../seed"
	}
	if err := seed.Run(ctx, pool, seedDir); err != nil {
		log.Fatal("failed to seed database:", err)
	}

	manager := appmanager.NewAppManager()

	servicesCfg, err := appmanager.LoadServiceSequence("../services.yaml")
	if err != nil {
		log.Fatal("failed to load service sequence:", err)
	}
	manager.AutoRegisterServices(servicesCfg)

	if err := manager.StartAll(); err != nil {
		log.Fatal("failed to start:", err)
	}

	// Graceful shutdown handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := manager.StopAll(); err != nil {
		log.Fatal("failed to stop:", err)
	}
}
