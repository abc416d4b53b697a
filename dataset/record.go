// Package dataset implements dreamflow's durable, ordered, append-only
// message streams. A Dataset wraps a Log backend (in-memory or Kafka) and
// hands out independent consumer cursors so that every node reads the same
// stream at its own pace.
//
// Offsets are strictly increasing per dataset and records are immutable once
// appended. The append path is safe under concurrent producers; a cursor is
// owned by exactly one (dataset, node) pair and is not safe for concurrent
// use.
package dataset

import (
	"encoding/json"
	"time"
)

// Record is a single immutable entry in a dataset.
type Record struct {
	// Offset is the record's position, strictly increasing per dataset.
	Offset uint64 `json:"offset"`
	// Key is the opaque correlation token, empty if absent. It links a
	// record back to the gateway request that triggered it.
	Key string `json:"key,omitempty"`
	// Payload is the JSON-encoded message body.
	Payload []byte `json:"payload"`
	// Timestamp is the record creation time.
	Timestamp time.Time `json:"timestamp"`
}

// Decode unmarshals the record payload into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Payload, v)
}
