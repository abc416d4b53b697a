package dataset

import (
	"context"
	"sync"
	"time"
)

// MemoryLog is an in-process Log backend. It is the default backend for
// single-process pipelines and for tests.
//
// Appends serialize on one mutex, which doubles as the atomic offset
// allocator. Blocked readers are woken by closing a broadcast channel that
// is replaced on every append.
type MemoryLog struct {
	mu      sync.Mutex
	records []Record
	wake    chan struct{}
	closed  bool
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{wake: make(chan struct{})}
}

// Append writes a record and returns its assigned offset.
func (m *MemoryLog) Append(_ context.Context, key string, payload []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	offset := uint64(len(m.records))
	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.records = append(m.records, Record{
		Offset:    offset,
		Key:       key,
		Payload:   buf,
		Timestamp: time.Now(),
	})

	// Wake all blocked readers.
	close(m.wake)
	m.wake = make(chan struct{})

	return offset, nil
}

// Read returns the record at offset, blocking until it exists or ctx is done.
func (m *MemoryLog) Read(ctx context.Context, offset uint64) (Record, error) {
	for {
		m.mu.Lock()
		if offset < uint64(len(m.records)) {
			rec := m.records[offset]
			m.mu.Unlock()
			return rec, nil
		}
		wake := m.wake
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-wake:
		}
	}
}

// End returns the next offset that will be assigned.
func (m *MemoryLog) End(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.records)), nil
}

// Close is a no-op for the memory backend.
func (m *MemoryLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
