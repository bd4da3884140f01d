package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/npaujiana/scraper-tiktok/internal/config"
	"github.com/npaujiana/scraper-tiktok/internal/databank"
	"github.com/npaujiana/scraper-tiktok/internal/export"
	"github.com/npaujiana/scraper-tiktok/internal/models"
	"github.com/npaujiana/scraper-tiktok/internal/notifications"
	"github.com/npaujiana/scraper-tiktok/internal/storage"
)

// oneTableSource serves a single page of content rows
type oneTableSource struct{}

func (oneTableSource) Rows(ctx context.Context, kind models.Kind, filter *databank.Filter, after []any, limit int) (*databank.Page, error) {
	page := &databank.Page{
		Columns: []string{"platform", "content_id"},
		Labels:  []string{"Platform", "Content ID"},
	}
	if kind == models.KindContent && after == nil {
		page.Rows = [][]any{{"tiktok", "1"}, {"tiktok", "2"}}
		page.LastKey = []any{"tiktok", "2"}
	}
	return page, nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendIngestReport(report *databank.BatchReport) error {
	args := m.Called(report)
	return args.Error(0)
}

func (m *mockNotifier) SendExportNotice(notice *notifications.ExportNotice) error {
	args := m.Called(notice)
	return args.Error(0)
}

func TestRunExportStoresArtifact(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	assert.NoError(t, err)

	notifier := &mockNotifier{}
	notifier.On("SendExportNotice", mock.MatchedBy(func(n *notifications.ExportNotice) bool {
		return n.Rows == 2 && strings.HasPrefix(n.Artifact, "databank_export_")
	})).Return(nil)

	service := NewService(&config.Config{}, nil, export.NewBuilder(oneTableSource{}), store, notifier)

	artifact, rows, err := service.RunExport(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.True(t, strings.HasSuffix(artifact, ".xlsx"))

	stored, err := store.Retrieve(artifact)
	assert.NoError(t, err)
	assert.NotEmpty(t, stored)

	notifier.AssertExpectations(t)
}

func TestRunExportConcurrent(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	assert.NoError(t, err)

	notifier := &mockNotifier{}
	notifier.On("SendExportNotice", mock.Anything).Return(nil)

	service := NewService(&config.Config{}, nil, export.NewBuilder(oneTableSource{}), store, notifier)

	// Same-second runs share an artifact name; each must still build and
	// store from its own scratch file
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, rows, err := service.RunExport(context.Background())
			if err == nil && rows != 2 {
				err = fmt.Errorf("exported %d rows, want 2", rows)
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	names, err := store.List("databank_export_")
	assert.NoError(t, err)
	assert.NotEmpty(t, names)
	for _, name := range names {
		data, err := store.Retrieve(name)
		assert.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestRunExportNoRows(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	assert.NoError(t, err)

	notifier := &mockNotifier{}
	builder := export.NewBuilder(emptySource{})
	service := NewService(&config.Config{}, nil, builder, store, notifier)

	_, _, err = service.RunExport(context.Background())
	assert.Error(t, err)

	// Nothing stored, no notice sent
	names, listErr := store.List("")
	assert.NoError(t, listErr)
	assert.Empty(t, names)
	notifier.AssertNotCalled(t, "SendExportNotice", mock.Anything)
}

type emptySource struct{}

func (emptySource) Rows(ctx context.Context, kind models.Kind, filter *databank.Filter, after []any, limit int) (*databank.Page, error) {
	return &databank.Page{}, nil
}

func TestStartAndStop(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	assert.NoError(t, err)

	cfg := &config.Config{ExportSchedule: "weekly", FeedPollMinutes: 15}
	service := NewService(cfg, nil, export.NewBuilder(emptySource{}), store, &mockNotifier{})

	assert.NoError(t, service.Start())
	time.Sleep(10 * time.Millisecond)
	service.Stop()
}
