package feed

import (
	"context"

	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// Source is one extraction-layer endpoint emitting already-typed records.
// Fetch returns a batch plus the cursor to resume from; an empty batch means
// the source is drained for now. Duplicate deliveries are fine; ingestion
// is idempotent by construction.
type Source interface {
	Name() string
	IsEnabled() bool
	Fetch(ctx context.Context, cursor string) ([]models.Record, string, error)
}
