package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/npaujiana/scraper-tiktok/internal/databank"
	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// ErrNoRows is returned when nothing matches the export query; no file is
// written in that case.
var ErrNoRows = errors.New("no rows to export")

// RowSource pages table rows in identity-key order
type RowSource interface {
	Rows(ctx context.Context, kind models.Kind, filter *databank.Filter, after []any, limit int) (*databank.Page, error)
}

// Header styling
const (
	headerFillColor = "2F5496"
	maxColumnWidth  = 60
)

// Builder streams table rows into styled xlsx workbooks. It reads through
// RowSource one page at a time, so large tables are never materialized in
// memory and no connection lease outlives a single page.
type Builder struct {
	source   RowSource
	pageSize int
}

// NewBuilder creates an export builder
func NewBuilder(source RowSource) *Builder {
	return &Builder{source: source, pageSize: 500}
}

// Filename generates a timestamped export filename
func Filename(prefix string) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("20060102_150405"))
}

// ExportAll writes every kind into one multi-sheet workbook at path.
// Returns the total number of exported rows.
func (b *Builder) ExportAll(ctx context.Context, path string) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	style, err := b.headerStyle(f)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, kind := range models.Kinds {
		n, err := b.writeSheet(ctx, f, style, kind, nil)
		if err != nil {
			return 0, fmt.Errorf("export %s: %w", kind, err)
		}
		total += n
	}
	if total == 0 {
		return 0, ErrNoRows
	}

	if err := b.save(f, path); err != nil {
		return 0, err
	}
	logrus.Infof("Exported %d rows to %s", total, path)
	return total, nil
}

// ExportKind writes one kind, optionally filtered, into a single-sheet
// workbook at path
func (b *Builder) ExportKind(ctx context.Context, kind models.Kind, filter *databank.Filter, path string) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	style, err := b.headerStyle(f)
	if err != nil {
		return 0, err
	}

	n, err := b.writeSheet(ctx, f, style, kind, filter)
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", kind, err)
	}
	if n == 0 {
		return 0, ErrNoRows
	}

	if err := b.save(f, path); err != nil {
		return 0, err
	}
	logrus.Infof("Exported %d %s rows to %s", n, kind, path)
	return n, nil
}

func (b *Builder) headerStyle(f *excelize.File) (int, error) {
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Arial", Bold: true, Color: "FFFFFF", Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFillColor}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return 0, fmt.Errorf("create header style: %w", err)
	}
	return style, nil
}

// writeSheet streams one table into one sheet. Column widths are derived
// from the header labels and the first page of rows, capped at
// maxColumnWidth. Returns the number of data rows written; an empty result
// writes no sheet at all.
func (b *Builder) writeSheet(ctx context.Context, f *excelize.File, style int, kind models.Kind, filter *databank.Filter) (int, error) {
	page, err := b.source.Rows(ctx, kind, filter, nil, b.pageSize)
	if err != nil {
		return 0, err
	}
	if len(page.Rows) == 0 {
		return 0, nil
	}

	sheet := databank.SheetName(kind)
	if _, err := f.NewSheet(sheet); err != nil {
		return 0, fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, fmt.Errorf("stream writer %s: %w", sheet, err)
	}

	// Widths must be set before any row is written
	widths := columnWidths(page.Labels, page.Rows)
	for i, w := range widths {
		if err := sw.SetColWidth(i+1, i+1, w); err != nil {
			return 0, err
		}
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return 0, err
	}

	header := make([]interface{}, len(page.Labels))
	for i, label := range page.Labels {
		header[i] = excelize.Cell{StyleID: style, Value: label}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return 0, err
	}

	written := 0
	for {
		for _, row := range page.Rows {
			cells := make([]interface{}, len(row))
			for i, v := range row {
				cells[i] = cellValue(v)
			}
			cellRef, err := excelize.CoordinatesToCellName(1, written+2)
			if err != nil {
				return 0, err
			}
			if err := sw.SetRow(cellRef, cells); err != nil {
				return 0, err
			}
			written++
		}
		if len(page.Rows) < b.pageSize {
			break
		}
		page, err = b.source.Rows(ctx, kind, filter, page.LastKey, b.pageSize)
		if err != nil {
			return 0, err
		}
		if len(page.Rows) == 0 {
			break
		}
	}

	if err := sw.Flush(); err != nil {
		return 0, fmt.Errorf("flush sheet %s: %w", sheet, err)
	}
	return written, nil
}

func (b *Builder) save(f *excelize.File, path string) error {
	// Drop the workbook's default sheet; every real sheet is named
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// cellValue converts database values into spreadsheet-friendly ones
func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return v
	}
}

// columnWidths sizes each column to its content, sampling the first page
func columnWidths(labels []string, rows [][]any) []float64 {
	widths := make([]float64, len(labels))
	for i, label := range labels {
		widths[i] = float64(len(label))
	}
	for _, row := range rows {
		for i, v := range row {
			if i >= len(widths) {
				break
			}
			l := len(fmt.Sprint(cellValue(v)))
			if l > maxColumnWidth {
				l = maxColumnWidth
			}
			if float64(l) > widths[i] {
				widths[i] = float64(l)
			}
		}
	}
	for i := range widths {
		widths[i] += 3
	}
	return widths
}
