package export

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/npaujiana/scraper-tiktok/internal/databank"
	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// fakeSource serves canned pages per kind and records the filters it saw
type fakeSource struct {
	pages   map[models.Kind][][]rowData
	filters []*databank.Filter
}

type rowData struct {
	key    []any
	values []any
}

func (f *fakeSource) Rows(ctx context.Context, kind models.Kind, filter *databank.Filter, after []any, limit int) (*databank.Page, error) {
	f.filters = append(f.filters, filter)

	page := &databank.Page{
		Columns: []string{"platform", "content_id", "nickname", "digg_count", "last_updated_at"},
		Labels:  []string{"Platform", "Content ID", "Nickname", "Likes", "Last Updated"},
	}

	pages := f.pages[kind]
	idx := 0
	if after != nil {
		// The cursor is the page index in this fake
		idx = int(after[0].(int64)) + 1
	}
	if idx >= len(pages) {
		return page, nil
	}
	for _, r := range pages[idx] {
		page.Rows = append(page.Rows, r.values)
	}
	if len(page.Rows) > 0 {
		page.LastKey = []any{int64(idx)}
	}
	return page, nil
}

func contentRow(id, nickname string, diggs int64) rowData {
	return rowData{
		key:    []any{"tiktok", id},
		values: []any{"tiktok", id, nickname, diggs, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)},
	}
}

func TestExportKindWritesWorkbook(t *testing.T) {
	source := &fakeSource{pages: map[models.Kind][][]rowData{
		models.KindContent: {{
			contentRow("101", "alice", 1500),
			contentRow("102", "bob", 0),
		}},
	}}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	builder := NewBuilder(source)

	n, err := builder.ExportKind(context.Background(), models.KindContent, nil, path)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenFile(path)
	assert.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Contents"}, f.GetSheetList())

	rows, err := f.GetRows("Contents")
	assert.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, []string{"Platform", "Content ID", "Nickname", "Likes", "Last Updated"}, rows[0])
	assert.Equal(t, "101", rows[1][1])
	assert.Equal(t, "alice", rows[1][2])
	assert.Equal(t, "1500", rows[1][3])
	assert.Equal(t, "2024-03-01 09:30:00", rows[1][4])
}

func TestExportKindFrozenHeader(t *testing.T) {
	source := &fakeSource{pages: map[models.Kind][][]rowData{
		models.KindContent: {{contentRow("1", "carol", 7)}},
	}}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	builder := NewBuilder(source)

	_, err := builder.ExportKind(context.Background(), models.KindContent, nil, path)
	assert.NoError(t, err)

	f, err := excelize.OpenFile(path)
	assert.NoError(t, err)
	defer f.Close()

	panes, err := f.GetPanes("Contents")
	assert.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)
	assert.Equal(t, "A2", panes.TopLeftCell)
}

func TestExportKindNoRows(t *testing.T) {
	source := &fakeSource{pages: map[models.Kind][][]rowData{}}
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	builder := NewBuilder(source)

	_, err := builder.ExportKind(context.Background(), models.KindContent, nil, path)
	assert.ErrorIs(t, err, ErrNoRows)

	// No file is written for an empty result
	_, err = excelize.OpenFile(path)
	assert.Error(t, err)
}

func TestExportKindPassesFilter(t *testing.T) {
	source := &fakeSource{pages: map[models.Kind][][]rowData{
		models.KindContent: {{contentRow("1", "dave", 3)}},
	}}
	path := filepath.Join(t.TempDir(), "out.xlsx")
	builder := NewBuilder(source)

	filter := &databank.Filter{Nickname: "dave", SourceType: "mix"}
	_, err := builder.ExportKind(context.Background(), models.KindContent, filter, path)
	assert.NoError(t, err)

	assert.NotEmpty(t, source.filters)
	assert.Equal(t, filter, source.filters[0])
}

func TestExportAllSkipsEmptyTables(t *testing.T) {
	source := &fakeSource{pages: map[models.Kind][][]rowData{
		models.KindContent: {{contentRow("1", "erin", 9)}},
	}}
	path := filepath.Join(t.TempDir(), "all.xlsx")
	builder := NewBuilder(source)

	n, err := builder.ExportAll(context.Background(), path)
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := excelize.OpenFile(path)
	assert.NoError(t, err)
	defer f.Close()

	// Only the populated table got a sheet, and the default sheet is gone
	assert.Equal(t, []string{"Contents"}, f.GetSheetList())
}

func TestExportAllEmpty(t *testing.T) {
	source := &fakeSource{pages: map[models.Kind][][]rowData{}}
	builder := NewBuilder(source)

	_, err := builder.ExportAll(context.Background(), filepath.Join(t.TempDir(), "all.xlsx"))
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestExportPaginates(t *testing.T) {
	// Two full pages followed by a short one
	var pages [][]rowData
	id := 0
	for p := 0; p < 2; p++ {
		var page []rowData
		for i := 0; i < 500; i++ {
			id++
			page = append(page, contentRow(fmt.Sprintf("%d", id), "page", 1))
		}
		pages = append(pages, page)
	}
	id++
	pages = append(pages, []rowData{contentRow(fmt.Sprintf("%d", id), "tail", 1)})

	source := &fakeSource{pages: map[models.Kind][][]rowData{models.KindContent: pages}}
	path := filepath.Join(t.TempDir(), "big.xlsx")
	builder := NewBuilder(source)

	n, err := builder.ExportKind(context.Background(), models.KindContent, nil, path)
	assert.NoError(t, err)
	assert.Equal(t, 1001, n)

	f, err := excelize.OpenFile(path)
	assert.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Contents")
	assert.NoError(t, err)
	assert.Len(t, rows, 1002)
}

func TestFilename(t *testing.T) {
	name := Filename("databank_export")

	assert.Regexp(t, `^databank_export_\d{8}_\d{6}\.xlsx$`, name)
}

func TestColumnWidths(t *testing.T) {
	labels := []string{"ID", "Description"}
	rows := [][]any{
		{"1", "short"},
		{"2", string(make([]byte, 200))},
	}

	widths := columnWidths(labels, rows)

	assert.Len(t, widths, 2)
	assert.Equal(t, float64(len("ID"))+3, widths[0])
	assert.Equal(t, float64(maxColumnWidth+3), widths[1])
}
