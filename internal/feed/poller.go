package feed

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/npaujiana/scraper-tiktok/internal/databank"
	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// maxPagesPerRun bounds how far one polling run walks a single source so a
// backlogged feed cannot monopolize the run
const maxPagesPerRun = 50

// Poller drains enabled sources into the batch coordinator, remembering the
// cursor per source between runs
type Poller struct {
	sources []Source
	coord   *databank.Coordinator

	mu      sync.Mutex
	cursors map[string]string
}

// NewPoller creates a poller over the given sources
func NewPoller(sources []Source, coord *databank.Coordinator) *Poller {
	return &Poller{
		sources: sources,
		coord:   coord,
		cursors: make(map[string]string),
	}
}

// RunOnce polls every enabled source once and ingests what it finds.
// Returns one batch report per source that produced records.
func (p *Poller) RunOnce(ctx context.Context) map[string]*databank.BatchReport {
	reports := make(map[string]*databank.BatchReport)

	for _, source := range p.sources {
		if !source.IsEnabled() {
			logrus.Debugf("Skipping disabled feed source %s", source.Name())
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if report := p.drain(ctx, source); report != nil {
			reports[source.Name()] = report
		}
	}
	return reports
}

// drain walks a source page by page, feeding records straight into the
// coordinator's stream. The cursor only advances past pages that were
// handed to the coordinator.
func (p *Poller) drain(ctx context.Context, source Source) *databank.BatchReport {
	p.mu.Lock()
	cursor := p.cursors[source.Name()]
	p.mu.Unlock()

	records := make(chan models.Record)
	var report *databank.BatchReport
	done := make(chan struct{})
	go func() {
		defer close(done)
		report = p.coord.Ingest(ctx, records)
	}()

	fetched := 0
	for page := 0; page < maxPagesPerRun; page++ {
		batch, next, err := source.Fetch(ctx, cursor)
		if err != nil {
			logrus.Errorf("Error fetching from feed %s: %v", source.Name(), err)
			break
		}
		if len(batch) == 0 {
			break
		}
		for _, rec := range batch {
			select {
			case records <- rec:
			case <-ctx.Done():
				close(records)
				<-done
				return report
			}
		}
		fetched += len(batch)
		cursor = next

		p.mu.Lock()
		p.cursors[source.Name()] = cursor
		p.mu.Unlock()

		if next == "" {
			break
		}
	}
	close(records)
	<-done

	if fetched == 0 {
		return nil
	}
	logrus.Infof("Feed %s delivered %d records", source.Name(), fetched)
	return report
}
