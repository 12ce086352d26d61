// Package localqueue is the local reference queue service with SQS-style
// leases: a Postgres-backed lease store reachable over its own HTTP API, used in
// place of real AWS SQS when Config.Queue.Sqs.APIEndpointURL points at it.
package localqueue

import "time"

// Message is the durable queue row.
type Message struct {
	ID            string
	Queue         string
	Body          []byte
	Attributes    map[string]string
	EnqueuedAt    time.Time
	NotBefore     time.Time
	LeaseUntil    *time.Time
	ReceiptHandle *string
	DeliveryCount int
	MaxRetries    int
	DLQ           *string
	TraceID       *string
}

// ClaimOptions controls how messages are received.
type ClaimOptions struct {
	Queue      string
	Limit      int
	Visibility time.Duration
}
