package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// HTTPSource pulls record batches from an extraction-layer HTTP endpoint.
// The endpoint returns {"records": [envelopes], "next_cursor": "..."}.
type HTTPSource struct {
	name    string
	baseURL string
	client  *resty.Client
}

type feedPage struct {
	Records    []models.Envelope `json:"records"`
	NextCursor string            `json:"next_cursor"`
}

// NewHTTPSource creates a feed source for one extraction endpoint. The name
// is derived from the endpoint host when not provided.
func NewHTTPSource(name, baseURL string) *HTTPSource {
	if name == "" {
		if u, err := url.Parse(baseURL); err == nil {
			name = u.Host
		}
	}
	return &HTTPSource{
		name:    name,
		baseURL: baseURL,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "scraper-tiktok-databank/1.0"),
	}
}

func (s *HTTPSource) Name() string {
	return s.name
}

func (s *HTTPSource) IsEnabled() bool {
	return s.baseURL != ""
}

func (s *HTTPSource) Fetch(ctx context.Context, cursor string) ([]models.Record, string, error) {
	req := s.client.R().SetContext(ctx)
	if cursor != "" {
		req.SetQueryParam("cursor", cursor)
	}

	resp, err := req.Get(s.baseURL)
	if err != nil {
		return nil, cursor, fmt.Errorf("fetch from %s: %w", s.name, err)
	}
	if resp.StatusCode() != 200 {
		return nil, cursor, fmt.Errorf("feed %s returned status %d", s.name, resp.StatusCode())
	}

	var page feedPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, cursor, fmt.Errorf("decode feed page from %s: %w", s.name, err)
	}

	records := make([]models.Record, 0, len(page.Records))
	for _, env := range page.Records {
		rec, err := models.DecodeEnvelope(env)
		if err != nil {
			// Malformed entries are dropped here; the producer is untrusted
			// and one bad envelope must not block the rest of the page.
			continue
		}
		records = append(records, rec)
	}
	return records, page.NextCursor, nil
}
