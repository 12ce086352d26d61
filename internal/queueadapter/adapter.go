// Package queueadapter implements the queue adapter contract (C2): a
// long-polling receive and acknowledge against an external queue service,
// with message-to-Item translation.
package queueadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/glennschmidt/fcgiq/internal/item"
)

// Adapter is the contract the runner consumes. Both operations are
// suspension points that block on network I/O, and both must be safe to
// call concurrently from multiple workers against the same instance.
type Adapter interface {
	// Receive requests at most one message with a server-side long poll of
	// up to wait. Returns (nil, nil) on a successful empty poll.
	Receive(ctx context.Context, wait time.Duration) (*item.Item, error)

	// Acknowledge deletes the message identified by it's receipt handle.
	Acknowledge(ctx context.Context, it *item.Item) error
}

// ErrorKind classifies a QueueError, matching spec.md §7's taxonomy.
type ErrorKind string

const (
	KindReceive        ErrorKind = "QUEUE_RECEIVE_FAILED"
	KindDelete         ErrorKind = "QUEUE_DELETE_FAILED"
	KindMissingID      ErrorKind = "MISSING_MESSAGE_ID"
	KindMissingReceipt ErrorKind = "MISSING_RECEIPT_HANDLE"
)

// QueueError reports a queue adapter failure.
type QueueError struct {
	Kind ErrorKind
	Err  error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("queue adapter (%s): %v", e.Kind, e.Err)
}

func (e *QueueError) Unwrap() error { return e.Err }
