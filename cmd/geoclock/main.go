package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paincake00/geoclock/internal/config"
	delivery "github.com/paincake00/geoclock/internal/delivery/http"
	"github.com/paincake00/geoclock/internal/infrastructure/firestore"
	"github.com/paincake00/geoclock/internal/infrastructure/postgres"
	"github.com/paincake00/geoclock/internal/infrastructure/redis"
	"github.com/paincake00/geoclock/internal/logger"
	"github.com/paincake00/geoclock/internal/usecase"
	"github.com/paincake00/geoclock/internal/worker"
)

// store хранилище геозон и записей посещаемости.
type store interface {
	usecase.GeofenceRepository
	usecase.AttendanceRepository
	delivery.Pinger
	Close()
}

func openStore(ctx context.Context, cfg *config.Config, l logger.Logger) (store, error) {
	if cfg.StoreBackend == config.BackendFirestore {
		fs, err := firestore.New(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentials)
		if err != nil {
			return nil, err
		}
		fs.Log = l
		return fs, nil
	}

	pg, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pg.Log = l
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func main() {
	// 1. Загрузка конфигурации (.env опционален)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	loc, _ := cfg.Location()

	appLog := logger.New(log.Default(), cfg.RollbarToken, cfg.Environment)
	if rl, ok := appLog.(logger.RollbarLogger); ok {
		defer rl.Close()
	}

	ctx := context.Background()
	if cfg.APIKey == "" {
		appLog.Warn("API_KEY is empty: location samples are accepted without authentication", map[string]interface{}{"environment": cfg.Environment})
	}

	// 2. Хранилище (PostgreSQL или Firestore)
	db, err := openStore(ctx, cfg, appLog)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer db.Close()

	// 3. Подключение к Redis: кеш, очередь, смены и поток местоположений
	redisRepo, err := redis.New(redis.Options{
		Addr:           cfg.RedisAddr,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		CacheTTL:       cfg.GeofenceCacheTTL,
		LocationMaxAge: cfg.LocationMaxAge,
	})
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisRepo.Close()

	// 4. Инициализация сервисов (Application Layer)
	geofenceService := usecase.NewGeofenceService(db, redisRepo, appLog)
	geoService := usecase.NewGeoService(geofenceService)
	trackingService := usecase.NewTrackingService(redisRepo, redisRepo, geofenceService, cfg.LocationTimeout, appLog)
	trackingService.MaxAge = cfg.LocationMaxAge
	attendanceService := usecase.NewAttendanceService(db, redisRepo, geofenceService, trackingService,
		redisRepo, cfg.Schedule(), loc, appLog)

	// 5. Запуск воркера уведомлений
	w := worker.New(redisRepo, cfg.WebhookURL, cfg.SlackWebhookURL, appLog)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		w.Start(workerCtx)
		close(workerDone)
	}()

	// 6. HTTP-обработчик; хранилище и Redis используются для health-check
	handler := delivery.NewHandler(geofenceService, geoService, trackingService, attendanceService,
		db, redisRepo, cfg.APIKey, []byte(cfg.JWTSecret), appLog)
	router := handler.InitRoutes()

	// 7. Запуск HTTP-сервера
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 8. Graceful Shutdown (Плавное завершение)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	trackingService.StopAll()
	attendanceService.Close() // события уже в очереди до остановки воркера
	workerCancel()
	<-workerDone

	log.Println("Server exiting")
}
