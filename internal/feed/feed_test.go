package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/npaujiana/scraper-tiktok/internal/databank"
	"github.com/npaujiana/scraper-tiktok/internal/models"
)

func feedHandler(t *testing.T, pages map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		body, ok := pages[cursor]
		if !ok {
			t.Errorf("unexpected cursor %q", cursor)
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func TestHTTPSourceFetch(t *testing.T) {
	server := httptest.NewServer(feedHandler(t, map[string]string{
		"": `{
			"records": [
				{"kind":"content","record":{"platform":"tiktok","content_id":"1"}},
				{"kind":"user","record":{"platform":"tiktok","uid":"2"}}
			],
			"next_cursor": "page2"
		}`,
	}))
	defer server.Close()

	source := NewHTTPSource("test-feed", server.URL)

	records, next, err := source.Fetch(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, "page2", next)
	assert.Len(t, records, 2)
	assert.Equal(t, models.KindContent, records[0].Kind())
	assert.Equal(t, models.KindUser, records[1].Kind())
}

func TestHTTPSourceFetchSendsCursor(t *testing.T) {
	server := httptest.NewServer(feedHandler(t, map[string]string{
		"page2": `{"records": [], "next_cursor": ""}`,
	}))
	defer server.Close()

	source := NewHTTPSource("test-feed", server.URL)

	records, next, err := source.Fetch(context.Background(), "page2")
	assert.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, next)
}

func TestHTTPSourceDropsMalformedEnvelopes(t *testing.T) {
	server := httptest.NewServer(feedHandler(t, map[string]string{
		"": `{
			"records": [
				{"kind":"playlist","record":{}},
				{"kind":"content","record":{"platform":"tiktok","content_id":"1"}}
			],
			"next_cursor": ""
		}`,
	}))
	defer server.Close()

	source := NewHTTPSource("test-feed", server.URL)

	records, _, err := source.Fetch(context.Background(), "")
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, models.KindContent, records[0].Kind())
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewHTTPSource("test-feed", server.URL)

	_, cursor, err := source.Fetch(context.Background(), "resume-here")
	assert.Error(t, err)
	assert.Equal(t, "resume-here", cursor, "cursor must not advance on failure")
}

func TestHTTPSourceNameFromURL(t *testing.T) {
	source := NewHTTPSource("", "http://extractor.internal:9000/feed")
	assert.Equal(t, "extractor.internal:9000", source.Name())
	assert.True(t, source.IsEnabled())

	disabled := NewHTTPSource("x", "")
	assert.False(t, disabled.IsEnabled())
}

// countingUpserter counts successful writes per key
type countingUpserter struct {
	mu   sync.Mutex
	keys []string
}

func (c *countingUpserter) Upsert(ctx context.Context, rec models.Record) (databank.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, rec.Key())
	return databank.OutcomeInserted, nil
}

func envelopePage(next string, ids ...string) string {
	var envs []models.Envelope
	for _, id := range ids {
		raw, _ := json.Marshal(map[string]string{"platform": "tiktok", "content_id": id})
		envs = append(envs, models.Envelope{Kind: models.KindContent, Record: raw})
	}
	page, _ := json.Marshal(map[string]any{"records": envs, "next_cursor": next})
	return string(page)
}

func TestPollerWalksPages(t *testing.T) {
	server := httptest.NewServer(feedHandler(t, map[string]string{
		"":   envelopePage("p2", "1", "2"),
		"p2": envelopePage("", "3"),
	}))
	defer server.Close()

	upserter := &countingUpserter{}
	coord := databank.NewCoordinator(upserter, 2)
	poller := NewPoller([]Source{NewHTTPSource("feed-a", server.URL)}, coord)

	reports := poller.RunOnce(context.Background())

	assert.Len(t, reports, 1)
	report := reports["feed-a"]
	assert.NotNil(t, report)
	assert.Equal(t, 3, report.Received)
	assert.Equal(t, 3, report.Inserted)
	assert.Len(t, upserter.keys, 3)
}

func TestPollerResumesCursor(t *testing.T) {
	var mu sync.Mutex
	served := []string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		mu.Lock()
		served = append(served, cursor)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch cursor {
		case "":
			fmt.Fprint(w, envelopePage("p2", "1"))
		default:
			// Keep handing back the same cursor with no records
			fmt.Fprint(w, `{"records": [], "next_cursor": "p2"}`)
		}
	}))
	defer server.Close()

	upserter := &countingUpserter{}
	coord := databank.NewCoordinator(upserter, 2)
	poller := NewPoller([]Source{NewHTTPSource("feed-a", server.URL)}, coord)

	poller.RunOnce(context.Background())
	poller.RunOnce(context.Background())

	mu.Lock()
	defer mu.Unlock()
	// The second run resumed from the stored cursor instead of the head
	assert.Equal(t, []string{"", "p2", "p2"}, served)
}

func TestPollerSkipsDisabledSources(t *testing.T) {
	upserter := &countingUpserter{}
	coord := databank.NewCoordinator(upserter, 2)
	poller := NewPoller([]Source{NewHTTPSource("off", "")}, coord)

	reports := poller.RunOnce(context.Background())
	assert.Empty(t, reports)
}
