package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/dreamflow/component"
	"github.com/skillsenselab/dreamflow/correlation"
	"github.com/skillsenselab/dreamflow/dataset"
	"github.com/skillsenselab/dreamflow/logger"
)

// readRetryWait paces re-reads after a backend failure so a down broker
// does not turn the consumer into a warn loop.
const readRetryWait = time.Second

// Resolver consumes the pipeline's terminal datasets and settles the
// correlation cache. One goroutine per dataset; records on the result
// dataset fulfill their correlation id, records on any error dataset
// fail it. Races between them are resolved first-writer-wins by the
// cache.
type Resolver struct {
	cache       *correlation.Cache
	result      *dataset.Dataset
	errDatasets []*dataset.Dataset
	lg          *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewResolver creates a resolver. Start launches the consumers.
func NewResolver(cache *correlation.Cache, result *dataset.Dataset, errDatasets []*dataset.Dataset, log *logger.Logger) *Resolver {
	return &Resolver{
		cache:       cache,
		result:      result,
		errDatasets: errDatasets,
		lg:          log.WithComponent("gateway.resolver"),
	}
}

// Name implements component.Component.
func (r *Resolver) Name() string { return "gateway-resolver" }

// Start launches one consumer per bound dataset. The consumers outlive
// the Start context; Stop terminates them.
func (r *Resolver) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.consume(runCtx, r.result, r.cache.Resolve)
	for _, ds := range r.errDatasets {
		r.consume(runCtx, ds, r.cache.Fail)
	}
	return nil
}

func (r *Resolver) consume(ctx context.Context, ds *dataset.Dataset, settle func(id string, payload []byte) bool) {
	cur := ds.Cursor("gateway")
	lg := r.lg.WithFields(map[string]any{"dataset": ds.Name()})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			rec, err := cur.Next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				lg.WithError(err).Warn("reading terminal dataset")
				select {
				case <-ctx.Done():
					return
				case <-time.After(readRetryWait):
				}
				continue
			}
			if rec.Key == "" {
				lg.Warn("terminal record without correlation key", map[string]any{
					"offset": rec.Offset,
				})
			} else if settle(rec.Key, rec.Payload) {
				lg.Debug("request settled", map[string]any{
					"correlation_id": rec.Key,
					"offset":         rec.Offset,
				})
			}
			cur.Commit()
		}
	}()
}

// Stop terminates the consumers and waits for them to exit.
func (r *Resolver) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health reports healthy while the consumers run.
func (r *Resolver) Health(ctx context.Context) component.Health {
	return component.Health{Name: r.Name(), Status: component.StatusHealthy}
}
