package dataset

import (
	"context"
	"errors"
	"time"
)

// Cursor tracks the next unread offset for one consumer of a dataset.
//
// Next returns the record at the current position without advancing;
// Commit advances only after the caller has fully processed the record.
// A crash between Next and Commit therefore causes redelivery
// (at-least-once). Cursors are not safe for concurrent use: each is owned
// by a single consuming goroutine.
type Cursor struct {
	ds    *Dataset
	owner string
	next  uint64
}

// Owner returns the consumer name this cursor belongs to.
func (c *Cursor) Owner() string { return c.owner }

// Position returns the next offset to be read.
func (c *Cursor) Position() uint64 { return c.next }

// Next returns the record at the cursor position, blocking until it exists
// or ctx is done. It does not advance the cursor.
func (c *Cursor) Next(ctx context.Context) (Record, error) {
	return c.ds.log.Read(ctx, c.next)
}

// Poll waits up to the given duration for the next record.
// The boolean is false when the wait timed out without a record.
func (c *Cursor) Poll(ctx context.Context, wait time.Duration) (Record, bool, error) {
	pollCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	rec, err := c.ds.log.Read(pollCtx, c.next)
	if err != nil {
		// The parent context ending is a real error; our own poll
		// deadline expiring just means no record yet.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return rec, true, nil
}

// Commit advances the cursor past the record returned by the last Next.
func (c *Cursor) Commit() { c.next++ }
