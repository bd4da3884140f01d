package databank

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// Upserter is the write-side contract the coordinator fans records out to
type Upserter interface {
	Upsert(ctx context.Context, rec models.Record) (Outcome, error)
}

// Ensure DataBank implements Upserter
var _ Upserter = (*DataBank)(nil)

// KindTally aggregates outcomes for one record kind
type KindTally struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Failure itemizes one record that could not be persisted
type Failure struct {
	Kind   models.Kind `json:"kind"`
	Key    string      `json:"key"`
	Reason string      `json:"reason"`
}

// BatchReport is always returned from an ingest call, even under partial
// failure. Failed records are itemized for caller-level retry or logging.
type BatchReport struct {
	BatchID   string                     `json:"batch_id"`
	StartedAt time.Time                  `json:"started_at"`
	Duration  time.Duration              `json:"duration"`
	Received  int                        `json:"received"`
	Inserted  int                        `json:"inserted"`
	Updated   int                        `json:"updated"`
	Failed    int                        `json:"failed"`
	ByKind    map[models.Kind]*KindTally `json:"by_kind"`
	Failures  []Failure                  `json:"failures,omitempty"`
}

func newBatchReport() *BatchReport {
	return &BatchReport{
		BatchID:   uuid.New().String(),
		StartedAt: time.Now(),
		ByKind:    make(map[models.Kind]*KindTally),
	}
}

func (r *BatchReport) tally(kind models.Kind) *KindTally {
	t, ok := r.ByKind[kind]
	if !ok {
		t = &KindTally{}
		r.ByKind[kind] = t
	}
	return t
}

// Coordinator fans a stream of records out across pooled connections with
// bounded concurrency. One record's failure never aborts its siblings; there
// is no transaction spanning records.
type Coordinator struct {
	upserter Upserter
	fanOut   int
}

// NewCoordinator creates a coordinator with the given fan-out width. The
// width should stay below the pool's max size so a burst of records cannot
// starve other pool consumers.
func NewCoordinator(upserter Upserter, fanOut int) *Coordinator {
	if fanOut < 1 {
		fanOut = 1
	}
	return &Coordinator{upserter: upserter, fanOut: fanOut}
}

// Ingest consumes records until the channel closes or ctx is canceled.
// Cancellation stops dispatching new records; in-flight upserts run to
// completion so no row is ever left half-written.
func (c *Coordinator) Ingest(ctx context.Context, records <-chan models.Record) *BatchReport {
	report := newBatchReport()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	slots := make(chan struct{}, c.fanOut)

	// In-flight upserts survive batch cancellation; the acquire timeout
	// still bounds them.
	storeCtx := context.WithoutCancel(ctx)

dispatch:
	for {
		select {
		case <-ctx.Done():
			break dispatch
		case rec, open := <-records:
			if !open {
				break dispatch
			}
			mu.Lock()
			report.Received++
			mu.Unlock()

			// Reject incomplete records at the boundary; they never
			// reach the store.
			if err := rec.Validate(); err != nil {
				mu.Lock()
				report.Failed++
				report.tally(rec.Kind()).Failed++
				report.Failures = append(report.Failures, Failure{
					Kind: rec.Kind(), Key: rec.Key(), Reason: err.Error(),
				})
				mu.Unlock()
				continue
			}

			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				report.Failed++
				report.tally(rec.Kind()).Failed++
				report.Failures = append(report.Failures, Failure{
					Kind: rec.Kind(), Key: rec.Key(), Reason: "batch canceled before dispatch",
				})
				mu.Unlock()
				break dispatch
			}

			wg.Add(1)
			go func(r models.Record) {
				defer wg.Done()
				defer func() { <-slots }()

				outcome, err := c.upserter.Upsert(storeCtx, r)

				mu.Lock()
				defer mu.Unlock()
				t := report.tally(r.Kind())
				switch {
				case err != nil:
					report.Failed++
					t.Failed++
					report.Failures = append(report.Failures, Failure{
						Kind: r.Kind(), Key: r.Key(), Reason: err.Error(),
					})
				case outcome == OutcomeInserted:
					report.Inserted++
					t.Inserted++
				default:
					report.Updated++
					t.Updated++
				}
			}(rec)
		}
	}

	wg.Wait()
	report.Duration = time.Since(report.StartedAt)

	logrus.Infof("Batch %s finished: %d received, %d inserted, %d updated, %d failed in %v",
		report.BatchID, report.Received, report.Inserted, report.Updated, report.Failed, report.Duration)
	return report
}

// IngestSlice is a convenience wrapper for callers holding a full batch
func (c *Coordinator) IngestSlice(ctx context.Context, records []models.Record) *BatchReport {
	ch := make(chan models.Record)
	go func() {
		defer close(ch)
		for _, rec := range records {
			select {
			case ch <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return c.Ingest(ctx, ch)
}
