package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-visitpass/internal/admission"
	"ms-visitpass/internal/admission/admission_api"
	admissiondb "ms-visitpass/internal/admission/db"
	rediswrap "ms-visitpass/internal/admission/redis"
	"ms-visitpass/internal/config"
	"ms-visitpass/internal/database/migrations"
	"ms-visitpass/internal/invitations"
	invitationsdb "ms-visitpass/internal/invitations/db"
	"ms-visitpass/internal/invitations/invitation_api"
	"ms-visitpass/internal/kafka"
	"ms-visitpass/internal/logger"
	"ms-visitpass/internal/notify"
	"ms-visitpass/internal/qr"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Visit Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if cfg.Admission.OverrideSecret == "" {
		log.Fatal("CONFIG", "OVERRIDE_SECRET not set")
	}

	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	if cfg.Admission.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Admission.MigrationsDir,
			AutoMigrate:   true,
		})
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
		}
		log.Info("DATABASE", "Migrations applied")
	}

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		requiredTopics := []string{
			cfg.Kafka.Topics.VisitCheckedIn,
			cfg.Kafka.Topics.OverrideRecorded,
			cfg.Kafka.Topics.DiscountIssued,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers,
			cfg.Kafka.Topics.VisitCheckedIn,
			cfg.Kafka.Topics.OverrideRecorded,
			cfg.Kafka.Topics.DiscountIssued)
		defer producer.Close()
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, visit events will not be streamed")
	}

	store := &admissiondb.DB{Bun: bunDB}
	notifier := notify.NewClient(cfg.Notify, log)

	// The producer is passed as a nil interface when Kafka is disabled so
	// the engine skips publishing entirely.
	var publisher admission.EventPublisher
	if producer != nil {
		publisher = producer
	}

	discounts := admission.NewDiscountTrigger(store, notifier, publisher, log)
	admissionService := admission.NewService(
		store,
		rediswrap.NewRedis(redisClient),
		publisher,
		discounts,
		admission.NewOverrideAuthority(cfg.Admission.OverrideSecret),
		cfg.Admission,
		log,
	)

	invitationService := invitations.NewService(
		&invitationsdb.DB{Bun: bunDB},
		notifier,
		qr.NewGenerator(),
		cfg.Admission,
		log,
	)

	log.Info("HTTP", "Setting up router")
	r := chi.NewRouter()

	admissionHandler := admission_api.NewHandler(admissionService)
	admissionHandler.Logger = log
	admissionHandler.RegisterRoutes(r)

	invitationHandler := invitation_api.NewHandler(invitationService)
	invitationHandler.Logger = log
	invitationHandler.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Visit Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("APP", "Shutdown signal received, cleaning up")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("HTTP", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("APP", "Server exited gracefully")
}
