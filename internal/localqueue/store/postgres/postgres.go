// Package postgres implements store.Store against a Postgres-backed lease
// table, adapted from the teacher's own queue store: FOR UPDATE SKIP LOCKED
// claims, lease-expiry requeue, and delivery-exhausted DLQ routing.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glennschmidt/fcgiq/internal/localqueue"
	"github.com/glennschmidt/fcgiq/internal/localqueue/metrics"
	"github.com/glennschmidt/fcgiq/internal/localqueue/store"
)

var _ store.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// toInterval converts a Go duration to a Postgres interval literal.
func toInterval(d time.Duration) string {
	return fmt.Sprintf("%fs", d.Seconds())
}

const (
	sqlEnqueue = `
INSERT INTO messages (id, queue, body, attributes, not_before, max_retries, dlq, trace_id)
VALUES ($1, $2, $3, $4, now() + $5::interval, $6, $7, $8);`

	sqlClaim = `
WITH picked AS (
  SELECT id
  FROM messages
  WHERE queue = $1
    AND lease_until IS NULL
    AND not_before <= now()
  ORDER BY enqueued_at
  FOR UPDATE SKIP LOCKED
  LIMIT $2
)
SELECT id FROM picked;`

	sqlClaimUpdate = `
UPDATE messages
SET lease_until    = now() + $2::interval,
    delivery_count = delivery_count + 1,
    receipt_handle = $3
WHERE id = $1
RETURNING id, queue, body, attributes, enqueued_at, not_before, lease_until,
          receipt_handle, delivery_count, max_retries, dlq, trace_id;`

	sqlAck = `DELETE FROM messages WHERE id = $1 AND receipt_handle = $2;`

	sqlSweeperRequeue = `
WITH expired AS (
  SELECT id
  FROM messages
  WHERE lease_until IS NOT NULL
    AND lease_until < now()
    AND (delivery_count < max_retries OR dlq IS NULL)
  FOR UPDATE SKIP LOCKED
)
UPDATE messages
SET lease_until = NULL, receipt_handle = NULL
WHERE id IN (SELECT id FROM expired);`

	sqlSweeperDLQ = `
WITH expired_for_dlq AS (
  SELECT id, dlq, body, attributes, max_retries, trace_id
  FROM messages
  WHERE lease_until IS NOT NULL
    AND lease_until < now()
    AND delivery_count >= max_retries
    AND dlq IS NOT NULL
  FOR UPDATE SKIP LOCKED
),
inserted AS (
  -- id falls back to the table's gen_random_uuid() default here; the
  -- requeued copy never passes through Go, unlike Enqueue's caller-visible id.
  INSERT INTO messages (queue, body, attributes, max_retries, trace_id, delivery_count)
  SELECT dlq, body, attributes, max_retries, trace_id, 0
  FROM expired_for_dlq
  RETURNING id
)
DELETE FROM messages
WHERE id IN (SELECT id FROM expired_for_dlq);`
)

func (p *PostgresStore) Enqueue(ctx context.Context, m localqueue.Message, delay time.Duration) (string, error) {
	if m.MaxRetries == 0 {
		m.MaxRetries = 5
	}

	attrs, err := sonic.Marshal(m.Attributes)
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}

	id := uuid.New().String()
	_, err = p.pool.Exec(ctx, sqlEnqueue,
		id,
		m.Queue,
		m.Body,
		attrs,
		toInterval(delay),
		m.MaxRetries,
		m.DLQ,
		m.TraceID,
	)
	return id, err
}

// Claim picks up to opts.Limit unleased, due messages and leases each under a
// freshly generated receipt handle. The pick and the per-row lease update run
// in one transaction so the SKIP LOCKED row locks survive between them.
func (p *PostgresStore) Claim(ctx context.Context, opts localqueue.ClaimOptions) ([]localqueue.Message, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, sqlClaim, opts.Queue, opts.Limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]localqueue.Message, 0, len(ids))
	for _, id := range ids {
		var (
			m         localqueue.Message
			attrsJSON []byte
		)
		err := tx.QueryRow(ctx, sqlClaimUpdate, id, toInterval(opts.Visibility), uuid.New().String()).Scan(
			&m.ID,
			&m.Queue,
			&m.Body,
			&attrsJSON,
			&m.EnqueuedAt,
			&m.NotBefore,
			&m.LeaseUntil,
			&m.ReceiptHandle,
			&m.DeliveryCount,
			&m.MaxRetries,
			&m.DLQ,
			&m.TraceID,
		)
		if err != nil {
			return nil, err
		}
		if len(attrsJSON) > 0 {
			if err := sonic.Unmarshal(attrsJSON, &m.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshal attributes: %w", err)
			}
		}
		out = append(out, m)
	}

	return out, tx.Commit(ctx)
}

func (p *PostgresStore) Ack(ctx context.Context, id, receiptHandle string) (bool, error) {
	ct, err := p.pool.Exec(ctx, sqlAck, id, receiptHandle)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (p *PostgresStore) Sweeper(ctx context.Context) (requeued int, dlqd int, err error) {
	tag, err := p.pool.Exec(ctx, sqlSweeperRequeue)
	if err != nil {
		return 0, 0, fmt.Errorf("sweep requeue: %w", err)
	}
	requeued = int(tag.RowsAffected())
	if requeued > 0 {
		metrics.MessagesRequeued.Add(float64(requeued))
	}

	tag, err = p.pool.Exec(ctx, sqlSweeperDLQ)
	if err != nil {
		return requeued, 0, fmt.Errorf("sweep dlq: %w", err)
	}
	dlqd = int(tag.RowsAffected())
	if dlqd > 0 {
		metrics.MessagesDLQd.Add(float64(dlqd))
	}

	return requeued, dlqd, nil
}
