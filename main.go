// ifcatlas-api server — main entry point.
//
// This binary serves the ingestion-to-catalogue pipeline: presigned
// uploads, Celery-compatible task dispatch, the spatial building
// catalogue, and the glTF model streamer. It connects to PostgreSQL and
// an S3-compatible object store, and speaks to an external worker fleet
// through a Redis-style broker.
//
// Usage:
//
//	ifcatlas-api              — start the HTTP server
//	ifcatlas-api migrate      — run database migrations and exit
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ifcatlas/api/catalogue"
	"github.com/ifcatlas/api/internal/broker"
	"github.com/ifcatlas/api/internal/config"
	"github.com/ifcatlas/api/internal/csrf"
	"github.com/ifcatlas/api/internal/middleware"
	"github.com/ifcatlas/api/internal/objectstore"
	"github.com/ifcatlas/api/internal/ratelimit"
	"github.com/ifcatlas/api/internal/store"
	"github.com/ifcatlas/api/models"
	"github.com/ifcatlas/api/task"
	"github.com/ifcatlas/api/upload"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(20)
	db.SetConnMaxIdleTime(30 * time.Second)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	err = db.PingContext(ctx)
	cancel()
	if err != nil {
		log.Fatalf("PostgreSQL ping failed: %v", err)
	}
	log.Println("Connected to PostgreSQL")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrations(db, cfg.MigrationsDir); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations complete")
		os.Exit(0)
	}

	objectStore, err := objectstore.New(context.Background(), objectstore.Config{
		Endpoint:       cfg.ObjectStoreEndpoint,
		Bucket:         cfg.ObjectStoreBucket,
		AccessKeyID:    cfg.ObjectStoreAccessKeyID,
		SecretKey:      cfg.ObjectStoreSecretKey,
		Region:         cfg.ObjectStoreRegion,
		ForcePathStyle: cfg.ObjectStoreForcePathStyle,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object store client: %v", err)
	}

	brokerClient := broker.New(broker.Config{
		Addr:     cfg.BrokerURL,
		Host:     cfg.BrokerHost,
		Port:     cfg.BrokerPort,
		Password: cfg.BrokerPassword,
		DB:       cfg.BrokerDB,
	})
	defer brokerClient.Close()

	ifcFiles := store.NewIfcFileStore(db)
	buildings := store.NewBuildingStore(db)

	uploadHandler := upload.NewHandler(upload.Config{
		MaxFileSizeMB:             cfg.MaxFileSizeMB,
		PresignedURLExpirySeconds: cfg.PresignedURLExpirySeconds,
		SingleFileReplacement:     cfg.SingleFileReplacement,
	}, ifcFiles, objectStore, brokerClient)

	catalogueHandler := catalogue.NewHandler(buildings, ifcFiles, objectStore, brokerClient, cfg.CacheEnabled)
	taskHandler := task.NewHandler(brokerClient)
	modelsHandler := models.NewHandler(objectStore)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", healthHandler(db))
	mux.HandleFunc("GET /api/v1/health/worker", workerHealthHandler(brokerClient))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/csrf-token", csrf.Handler(cfg.IsProduction()))

	uploadHandler.RegisterRoutes(mux)
	catalogueHandler.RegisterRoutes(mux)
	taskHandler.RegisterRoutes(mux)
	modelsHandler.RegisterRoutes(mux)

	globalLimiter := ratelimit.New(cfg.RateLimitMaxReqs, time.Duration(cfg.RateLimitWindowMS)*time.Millisecond)
	uploadLimiter := ratelimit.New(cfg.UploadRateLimitMax, time.Duration(cfg.RateLimitWindowMS)*time.Millisecond)

	handler := middleware.Chain(mux,
		middleware.Recovery,
		middleware.Metrics,
		middleware.Logger,
		middleware.HTTPSRedirect(cfg.IsProduction()),
		middleware.SecurityHeaders,
		middleware.Compression,
		middleware.RateLimit(globalLimiter, uploadLimiter),
		middleware.CORS(cfg.CORSAllowedOrigins),
		csrf.Protect,
	)

	addr := fmt.Sprintf("%s:%d", cfg.BindHost, cfg.BindPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long timeout to allow model streaming
		IdleTimeout:  120 * time.Second,
	}

	serverErrs := make(chan error, 1)
	go func() {
		log.Printf("ifcatlas-api listening on %s", addr)
		serverErrs <- server.ListenAndServe()
	}()

	stop, stopCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopCancel()

	select {
	case err := <-serverErrs:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case <-stop.Done():
		log.Println("shutdown signal received, draining in-flight requests")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown exceeded grace period, forcing exit: %v", err)
		}
	}
}

// healthHandler answers GET /health in the non-disclosing form: liveness
// only, no database version or internal detail in the body.
func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var one int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// workerHealthHandler answers GET /health/worker: readiness of the Celery
// worker fleet, by round-tripping a health_check task through the broker.
// Non-disclosing, same as healthHandler: status only, no task detail.
func workerHealthHandler(brk *broker.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 6*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if !brk.Healthy(ctx) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// runMigrations reads SQL files from the migrations directory and applies them.
func runMigrations(db *sql.DB, migrationsDir string) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS migration_version (version integer)`)
	if err != nil {
		return fmt.Errorf("create migration_version: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migration_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get version: %w", err)
	}
	log.Printf("Current migration version: %d", currentVersion)

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		base := filepath.Base(file)
		parts := strings.SplitN(base, "_", 2)
		if len(parts) < 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		log.Printf("Applying migration %d: %s", version, base)
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}

		_, err = db.Exec(string(sqlBytes))
		if err != nil {
			return fmt.Errorf("execute %s: %w", file, err)
		}

		log.Printf("Migration %d applied successfully", version)
	}

	return nil
}
