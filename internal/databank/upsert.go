package databank

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// Outcome reports what a successful upsert did to the row
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
)

const retryInitialInterval = 100 * time.Millisecond

// Upsert atomically inserts or replaces the row for the record's identity
// key. Insert sets first_seen_at; update replaces the payload columns whole
// (last writer wins) and advances last_updated_at. Transient failures are
// retried with exponential backoff before surfacing.
func (b *DataBank) Upsert(ctx context.Context, rec models.Record) (Outcome, error) {
	spec, ok := tableSpecs[rec.Kind()]
	if !ok {
		return "", fmt.Errorf("%w: unknown kind %q", models.ErrMalformedRecord, rec.Kind())
	}
	args, err := spec.args(rec)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
	}
	sql := upsertSQL[rec.Kind()]

	var outcome Outcome
	attempt := 0
	operation := func() error {
		attempt++
		result, opErr := b.upsertOnce(ctx, sql, args)
		if opErr == nil {
			outcome = result
			return nil
		}
		opErr = classify(opErr)
		if retryable(opErr) {
			logrus.Debugf("Retrying upsert %s (attempt %d): %v", rec.Key(), attempt, opErr)
			return opErr
		}
		return backoff.Permanent(opErr)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	err = backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(b.cfg.MaxRetries)), ctx))
	if err != nil {
		return "", fmt.Errorf("upsert %s: %w", rec.Key(), err)
	}
	return outcome, nil
}

// upsertOnce runs the statement on a freshly leased connection. The lease
// spans exactly one store round trip.
func (b *DataBank) upsertOnce(ctx context.Context, sql string, args []any) (Outcome, error) {
	conn, err := b.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Release()

	var inserted bool
	if err := conn.QueryRow(ctx, sql, args...).Scan(&inserted); err != nil {
		return "", err
	}
	if inserted {
		return OutcomeInserted, nil
	}
	return OutcomeUpdated, nil
}
