package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/npaujiana/scraper-tiktok/internal/config"
	"github.com/npaujiana/scraper-tiktok/internal/databank"
	"github.com/npaujiana/scraper-tiktok/internal/export"
	"github.com/npaujiana/scraper-tiktok/internal/feed"
	"github.com/npaujiana/scraper-tiktok/internal/models"
	"github.com/npaujiana/scraper-tiktok/internal/notifications"
	"github.com/npaujiana/scraper-tiktok/internal/scheduler"
	"github.com/npaujiana/scraper-tiktok/internal/storage"
)

const maxIngestBody = 32 << 20 // 32 MiB

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting TikTok Data Bank")

	// Initialize the data bank (pool + schema)
	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := databank.Open(openCtx, databank.Config{
		DSN:            cfg.DatabaseURL,
		MinConns:       int32(cfg.PoolMinConns),
		MaxConns:       int32(cfg.PoolMaxConns),
		AcquireTimeout: time.Duration(cfg.AcquireTimeoutSeconds) * time.Second,
		MaxRetries:     cfg.UpsertMaxRetries,
	})
	cancelOpen()
	if err != nil {
		logrus.Fatalf("Failed to initialize data bank: %v", err)
	}
	defer db.Close()

	// Initialize artifact storage
	var artifactStore storage.ArtifactStore
	if cfg.StorageAccount != "" {
		artifactStore, err = storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
	} else {
		artifactStore, err = storage.NewLocalStorage(cfg.ExportDir)
	}
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize notification services
	notificationService := notifications.NewService(cfg)

	// Initialize ingestion and export
	coordinator := databank.NewCoordinator(db, cfg.IngestFanOut)
	exporter := export.NewBuilder(db)

	// Initialize feed polling
	var sources []feed.Source
	for _, feedURL := range cfg.FeedURLs {
		sources = append(sources, feed.NewHTTPSource("", feedURL))
	}
	poller := feed.NewPoller(sources, coordinator)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, poller, exporter, artifactStore, notificationService)

	// Start scheduler
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server
	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Row counts per table
	router.HandleFunc("/stats", statsHandler(db)).Methods("GET")

	// Record ingestion
	router.HandleFunc("/ingest", ingestHandler(coordinator)).Methods("POST")

	// Spreadsheet export (full workbook async, single kind sync)
	router.HandleFunc("/export", exportHandler(schedulerService, exporter, artifactStore)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func statsHandler(db *databank.DataBank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := db.Counts(r.Context())
		if err != nil {
			logrus.Errorf("Stats query failed: %v", err)
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func ingestHandler(coordinator *databank.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		records, err := models.DecodeBatch(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		report := coordinator.IngestSlice(r.Context(), records)
		writeJSON(w, http.StatusOK, report)
	}
}

func exportHandler(schedulerService *scheduler.Service, exporter *export.Builder, store storage.ArtifactStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		if kind == "" {
			// Full export can take a while; run it in the background like a
			// scheduled run would
			go func() {
				if _, _, err := schedulerService.RunExport(context.Background()); err != nil {
					logrus.Errorf("Manual export trigger failed: %v", err)
				}
			}()
			writeJSON(w, http.StatusAccepted, map[string]string{"message": "Export triggered successfully"})
			return
		}

		filter := &databank.Filter{
			Nickname:   r.URL.Query().Get("nickname"),
			SourceType: r.URL.Query().Get("source_type"),
			From:       r.URL.Query().Get("from"),
			To:         r.URL.Query().Get("to"),
		}

		filename := export.Filename("databank_" + kind)

		// Scratch path must be unique per request; the artifact name alone
		// collides for same-second requests
		tmp, err := os.CreateTemp("", "databank-export-*.xlsx")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		tmpPath := tmp.Name()
		tmp.Close()
		defer os.Remove(tmpPath)

		rows, err := exporter.ExportKind(r.Context(), models.Kind(kind), filter, tmpPath)
		if err != nil {
			if errors.Is(err, export.ErrNoRows) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			logrus.Errorf("Export failed: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		data, err := os.ReadFile(tmpPath)
		if err == nil {
			err = store.Store(filename, data)
		}
		if err != nil {
			logrus.Errorf("Failed to store export artifact: %v", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"artifact": filename, "rows": rows})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
