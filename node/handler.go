// Package node implements dreamflow's node runtime: the supervised
// execution loop that binds one user-supplied processing unit to its
// declared input and output datasets.
//
// A node implementation satisfies Handler and is resolved by name from a
// Registry at graph-build time. The runtime owns the lifecycle state
// machine, input polling, correlation-key propagation, and the per-record
// failure policy.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/skillsenselab/dreamflow/dataset"
	"github.com/skillsenselab/dreamflow/logger"
)

// Handler is one stage of processing. Implementations must be safe to
// drive from a single goroutine; the runtime never calls Step concurrently
// on the same handler.
type Handler interface {
	// Init runs one-time setup with the node's topology parameters.
	// A failed Init faults the node.
	Init(ctx context.Context, params Params) error

	// Step processes one triggering record (or one timer tick for nodes
	// with no inputs). Results are emitted through the StepContext; a
	// returned error invokes the runtime's failure policy.
	Step(ctx context.Context, step *StepContext) error
}

// Closer is optionally implemented by handlers that hold resources.
type Closer interface {
	Close() error
}

// ErrorEvent is the payload written to a node's error dataset when a step
// fails. The correlation cache treats its arrival on any watched error
// dataset as a terminal failed resolution.
type ErrorEvent struct {
	CorrelationID string    `json:"correlation_id"`
	Stage         string    `json:"stage"`
	Message       string    `json:"message"`
	Cause         string    `json:"cause,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// StepContext carries one step's triggering record and output handles.
type StepContext struct {
	// Record is the triggering input record, nil for timer-driven nodes.
	Record *dataset.Record
	// Source is the input dataset name, empty for timer-driven steps.
	Source string
	// Log is a node- and correlation-scoped logger.
	Log *logger.Logger

	rt *Runtime
}

// Key returns the correlation key of the triggering record, or empty.
func (sc *StepContext) Key() string {
	if sc.Record == nil {
		return ""
	}
	return sc.Record.Key
}

// Emit appends v to the named output dataset, tagged with the triggering
// record's correlation key. Key propagation is how the correlation cache
// later reassembles a result, so Emit is the default producers should use.
func (sc *StepContext) Emit(ctx context.Context, output string, v any) error {
	return sc.EmitKeyed(ctx, output, sc.Key(), v)
}

// EmitKeyed appends v to the named output dataset with an explicit key.
func (sc *StepContext) EmitKeyed(ctx context.Context, output, key string, v any) error {
	ds, ok := sc.rt.outputs[output]
	if !ok {
		return fmt.Errorf("node %q has no output dataset %q", sc.rt.name, output)
	}
	_, err := ds.AppendJSON(ctx, key, v)
	return err
}

// Shutdown requests a pipeline-wide drain (the poison pill). Every node,
// including this one, finishes its in-flight record and terminates.
func (sc *StepContext) Shutdown() {
	sc.rt.requestShutdown()
}
