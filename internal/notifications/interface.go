package notifications

import (
	"time"

	"github.com/npaujiana/scraper-tiktok/internal/databank"
)

// ExportNotice announces a finished spreadsheet export
type ExportNotice struct {
	Artifact    string    `json:"artifact"`
	Rows        int       `json:"rows"`
	GeneratedAt time.Time `json:"generated_at"`
}

// NotificationInterface defines the contract for report delivery
type NotificationInterface interface {
	SendIngestReport(report *databank.BatchReport) error
	SendExportNotice(notice *ExportNotice) error
}
