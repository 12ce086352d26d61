package store

import (
	"context"
	"time"

	"github.com/glennschmidt/fcgiq/internal/localqueue"
)

// Store is the DB-agnostic interface the rest of the local queue service
// uses.
type Store interface {
	// Enqueue inserts a message (delay can be 0) and returns its id.
	Enqueue(ctx context.Context, m localqueue.Message, delay time.Duration) (string, error)

	// Claim atomically leases up to opts.Limit messages from a queue,
	// stamping each with a fresh opaque receipt handle.
	Claim(ctx context.Context, opts localqueue.ClaimOptions) ([]localqueue.Message, error)

	// Ack deletes the message by id, verifying the receipt handle matches
	// the current lease. Returns true if a row was deleted.
	Ack(ctx context.Context, id, receiptHandle string) (bool, error)

	// Sweeper requeues messages whose lease has expired and routes
	// retry-exhausted messages to their DLQ. Returns counts for metrics.
	Sweeper(ctx context.Context) (requeued int, dlqd int, err error)
}
