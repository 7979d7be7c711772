package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/paincake00/geoclock/internal/config"
	"github.com/paincake00/geoclock/internal/env"
	"github.com/paincake00/geoclock/internal/infrastructure/firestore"
	"github.com/paincake00/geoclock/internal/infrastructure/postgres"
	"github.com/paincake00/geoclock/internal/infrastructure/redis"
	"github.com/paincake00/geoclock/internal/seed"
	"github.com/paincake00/geoclock/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	path := env.GetString("SEED_FILE", "geofences.yaml")
	replace := env.GetBool("SEED_REPLACE", false)

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open seed file: %v", err)
	}
	owner, fences, err := seed.Parse(f)
	f.Close()
	if err != nil {
		log.Fatalf("Invalid seed file %s: %v", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var repo usecase.GeofenceRepository
	switch backend := env.GetString("STORE_BACKEND", config.BackendPostgres); backend {
	case config.BackendFirestore:
		fs, err := firestore.New(ctx, env.GetString("FIRESTORE_PROJECT_ID", ""), env.GetString("FIRESTORE_CREDENTIALS", ""))
		if err != nil {
			log.Fatalf("Failed to connect to firestore: %v", err)
		}
		defer fs.Close()
		repo = fs
	case config.BackendPostgres:
		pg, err := postgres.New(env.GetString("DATABASE_URL", ""))
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		repo = pg
	default:
		log.Fatalf("Unknown STORE_BACKEND %q", backend)
	}

	res, err := seed.Apply(ctx, repo, owner, fences, replace)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded geofences for %s: %d created, %d skipped, %d deleted", owner, res.Created, res.Skipped, res.Deleted)

	// Сброс кеша активных геозон.
	if addr := env.GetString("REDIS_ADDR", ""); addr != "" {
		rds, err := redis.New(redis.Options{
			Addr:     addr,
			Password: env.GetString("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
		})
		if err != nil {
			log.Printf("Failed to connect to redis, cache not invalidated: %v", err)
			return
		}
		defer rds.Close()
		if err := rds.InvalidateGeofences(ctx); err != nil {
			log.Printf("Failed to invalidate geofence cache: %v", err)
		}
	}
}
