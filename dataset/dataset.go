package dataset

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/logger"
	"github.com/skillsenselab/dreamflow/resilience"
)

// Dataset is a named, durable, ordered stream of records.
//
// Appends retry transient backend failures with exponential backoff; if
// retries exhaust, the error propagates to the producing node's failure
// policy. Reads go through per-consumer cursors (see Cursor).
type Dataset struct {
	name  string
	log   Log
	retry resilience.RetryConfig
	lg    *logger.Logger
}

// Option customizes a Dataset.
type Option func(*Dataset)

// WithRetry overrides the append retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(d *Dataset) { d.retry = cfg }
}

// New creates a Dataset over the given log backend.
func New(name string, l Log, lg *logger.Logger, opts ...Option) *Dataset {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 5
	retry.RetryIf = IsBackendUnavailable

	d := &Dataset{
		name:  name,
		log:   l,
		retry: retry,
		lg:    lg.WithComponent("dataset." + name),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the dataset identifier.
func (d *Dataset) Name() string { return d.name }

// Append writes a keyed record, retrying transient backend failures.
func (d *Dataset) Append(ctx context.Context, key string, payload []byte) (uint64, error) {
	cfg := d.retry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		d.lg.Warn("Append retrying", logger.Fields(
			"attempt", attempt,
			"backoff_ms", backoff.Milliseconds(),
			logger.FieldError, err.Error(),
		))
	}

	offset, err := resilience.Retry(ctx, cfg, func() (uint64, error) {
		return d.log.Append(ctx, key, payload)
	})
	if err != nil {
		if IsBackendUnavailable(err) {
			return 0, err
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		// Anything else is a permanent backend failure; do not relabel
		// it as retryable.
		return 0, err
	}

	d.lg.Debug("Record appended", logger.Fields(
		logger.FieldOffset, offset,
		logger.FieldCorrelationID, key,
	))
	return offset, nil
}

// AppendJSON marshals v and appends it as a keyed record.
func (d *Dataset) AppendJSON(ctx context.Context, key string, v any) (uint64, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, errors.Internal(err)
	}
	return d.Append(ctx, key, payload)
}

// End returns the next offset that will be assigned.
func (d *Dataset) End(ctx context.Context) (uint64, error) {
	return d.log.End(ctx)
}

// Close releases the backend.
func (d *Dataset) Close() error { return d.log.Close() }

// Cursor returns an independent consumer cursor starting at offset zero.
// The owner name identifies the consuming node in logs; each (dataset, node)
// pair owns exactly one cursor.
func (d *Dataset) Cursor(owner string) *Cursor {
	return &Cursor{ds: d, owner: owner}
}

// CursorAt returns a cursor positioned at the given offset.
func (d *Dataset) CursorAt(owner string, offset uint64) *Cursor {
	return &Cursor{ds: d, owner: owner, next: offset}
}

// CursorAtEnd returns a cursor positioned after the last existing record,
// so it only observes records appended from now on.
func (d *Dataset) CursorAtEnd(ctx context.Context, owner string) (*Cursor, error) {
	end, err := d.log.End(ctx)
	if err != nil {
		return nil, err
	}
	return &Cursor{ds: d, owner: owner, next: end}, nil
}
