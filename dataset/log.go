package dataset

import (
	"context"

	"github.com/skillsenselab/dreamflow/errors"
)

// Log is the storage backend behind a Dataset: an append-only ordered log.
//
// Implementations must allocate offsets atomically under concurrent
// appenders and make appended records immediately visible to readers.
// Transient storage failures are reported as BACKEND_UNAVAILABLE errors so
// the Dataset append path can retry them with backoff.
type Log interface {
	// Append writes a record and returns its assigned offset.
	Append(ctx context.Context, key string, payload []byte) (uint64, error)

	// Read returns the record at the given offset, blocking until it
	// exists or ctx is done.
	Read(ctx context.Context, offset uint64) (Record, error)

	// End returns the next offset that will be assigned.
	End(ctx context.Context) (uint64, error)

	// Close releases backend resources.
	Close() error
}

// IsBackendUnavailable reports whether err is a transient log-store failure
// that the append path should retry.
func IsBackendUnavailable(err error) bool {
	appErr, ok := errors.AsAppError(err)
	return ok && appErr.Code == errors.ErrCodeBackendUnavailable
}
