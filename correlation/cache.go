// Package correlation bridges the synchronous gateway to the
// asynchronous pipeline. The gateway registers a correlation id before
// appending a request to the entry dataset and awaits its resolution;
// terminal-dataset consumers resolve the id when a matching record
// arrives. Entries are retained for a bounded window and swept
// periodically regardless of status.
package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skillsenselab/dreamflow/component"
	apperrors "github.com/skillsenselab/dreamflow/errors"
	"github.com/skillsenselab/dreamflow/logger"
)

// Status is the lifecycle state of a correlation entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusFailed    Status = "failed"
)

// Outcome is a terminal resolution: the fulfilled result payload or the
// failure payload from an error dataset.
type Outcome struct {
	Status  Status
	Payload []byte
}

// entry tracks one in-flight request. The outcome is written exactly
// once, before done is closed; readers must wait on done first.
type entry struct {
	createdAt time.Time
	outcome   Outcome
	done      chan struct{}
}

// Config configures the cache.
type Config struct {
	// CleanupInterval is both the sweep period and the retention
	// window: entries older than this are removed on the next sweep,
	// resolved or not.
	CleanupInterval time.Duration
	// Log is the parent logger.
	Log *logger.Logger
}

const defaultCleanupInterval = 5 * time.Minute

// Cache is the time-indexed map from correlation id to outcome. It
// implements component.Component; Start launches the background
// sweeper.
type Cache struct {
	retention time.Duration
	lg        *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry

	stop     chan struct{}
	stopOnce sync.Once
	swept    chan struct{}
}

// NewCache creates a cache. The sweeper does not run until Start.
func NewCache(cfg Config) *Cache {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	return &Cache{
		retention: cfg.CleanupInterval,
		lg:        cfg.Log.WithComponent("correlation"),
		entries:   make(map[string]*entry),
		stop:      make(chan struct{}),
		swept:     make(chan struct{}),
	}
}

// Register creates a pending entry for the id. Registering an id that
// is already present is a no-op; the existing entry is kept.
func (c *Cache) Register(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		return
	}
	c.entries[id] = &entry{
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Await blocks until the id resolves, the timeout elapses, or the
// context is cancelled. Multiple callers may await the same id; each
// receives the same outcome. Cancellation frees only the caller; the
// entry stays for the sweeper.
func (c *Cache) Await(ctx context.Context, id string, timeout time.Duration) (Outcome, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return Outcome{}, apperrors.NotFound("correlation entry", id)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.done:
		return e.outcome, nil
	case <-timer.C:
		return Outcome{}, apperrors.Timeout("await " + id)
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Resolve fulfills a pending entry with the result payload. The first
// writer wins; later resolutions of the same id are no-ops. Returns
// whether this call stored the outcome.
func (c *Cache) Resolve(id string, payload []byte) bool {
	return c.settle(id, Outcome{Status: StatusFulfilled, Payload: payload})
}

// Fail marks a pending entry failed with the error payload. Same
// first-writer-wins contract as Resolve.
func (c *Cache) Fail(id string, payload []byte) bool {
	return c.settle(id, Outcome{Status: StatusFailed, Payload: payload})
}

func (c *Cache) settle(id string, out Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		// Unknown or already swept id. Terminal records for swept
		// entries are expected after a gateway timeout.
		return false
	}
	select {
	case <-e.done:
		return false
	default:
	}
	e.outcome = out
	close(e.done)
	return true
}

// Status returns the entry's current status.
func (c *Cache) Status(id string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return "", false
	}
	select {
	case <-e.done:
		return e.outcome.Status, true
	default:
		return StatusPending, true
	}
}

// Len returns the number of retained entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes entries older than the retention window, regardless of
// status. Pending awaiters of a swept entry keep their reference and
// still time out or resolve through it; only the map retention ends.
func (c *Cache) Sweep(now time.Time) int {
	cutoff := now.Add(-c.retention)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if e.createdAt.Before(cutoff) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Name implements component.Component.
func (c *Cache) Name() string { return "correlation-cache" }

// Start launches the background sweeper.
func (c *Cache) Start(ctx context.Context) error {
	go c.sweeper()
	return nil
}

// Stop terminates the sweeper.
func (c *Cache) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stop) })
	select {
	case <-c.swept:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports the retained entry count.
func (c *Cache) Health(ctx context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d entries", c.Len()),
	}
}

func (c *Cache) sweeper() {
	defer close(c.swept)
	ticker := time.NewTicker(c.retention)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			if removed := c.Sweep(now); removed > 0 {
				c.lg.Debug("swept correlation entries", map[string]any{
					"removed":  removed,
					"retained": c.Len(),
				})
			}
		}
	}
}
