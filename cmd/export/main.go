package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/npaujiana/scraper-tiktok/internal/config"
	"github.com/npaujiana/scraper-tiktok/internal/databank"
	"github.com/npaujiana/scraper-tiktok/internal/export"
	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// One-shot spreadsheet export. Writes a workbook for all tables, or for a
// single table when -kind is given, without going through the scheduler.
func main() {
	var (
		kind       = flag.String("kind", "", "export a single record kind (content, comment, user, search_user, search_live, hot_trend)")
		nickname   = flag.String("nickname", "", "filter rows by author nickname")
		sourceType = flag.String("source-type", "", "filter rows by source type")
		from       = flag.String("from", "", "only rows with collection_time at or after this value")
		to         = flag.String("to", "", "only rows with collection_time at or before this value")
		outDir     = flag.String("out", ".", "directory to write the workbook into")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := databank.Open(ctx, databank.Config{
		DSN:            cfg.DatabaseURL,
		MinConns:       int32(cfg.PoolMinConns),
		MaxConns:       int32(cfg.PoolMaxConns),
		AcquireTimeout: time.Duration(cfg.AcquireTimeoutSeconds) * time.Second,
		MaxRetries:     cfg.UpsertMaxRetries,
	})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	builder := export.NewBuilder(db)

	prefix := "databank_export"
	if *kind != "" {
		prefix = "databank_" + *kind
	}
	path := filepath.Join(*outDir, export.Filename(prefix))

	var rows int
	if *kind == "" {
		rows, err = builder.ExportAll(ctx, path)
	} else {
		filter := &databank.Filter{
			Nickname:   *nickname,
			SourceType: *sourceType,
			From:       *from,
			To:         *to,
		}
		rows, err = builder.ExportKind(ctx, models.Kind(*kind), filter, path)
	}
	if err != nil {
		if errors.Is(err, export.ErrNoRows) {
			logrus.Warn("No rows matched, nothing exported")
			return
		}
		logrus.Fatalf("Export failed: %v", err)
	}

	logrus.Infof("Exported %d rows to %s", rows, path)
}
