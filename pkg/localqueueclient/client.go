// Package localqueueclient is an HTTP client for the local reference queue
// service (cmd/localqueue), used by internal/queueadapter's
// LocalQueueAdapter when Config.Queue.Sqs
// .APIEndpointURL points at a locally-run instance instead of real AWS SQS.
package localqueueclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// Client talks to the local queue service's HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// clientTimeout is a safety net above the longest long poll Receive is
// expected to request (see Receive's own per-call context deadline); it
// only bounds requests the caller's context doesn't already bound.
const clientTimeout = 90 * time.Second

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: clientTimeout},
	}
}

// EnqueueOptions customizes a single Enqueue call.
type EnqueueOptions struct {
	Delay      time.Duration
	MaxRetries int
	DLQ        string
	TraceID    string
	Attributes map[string]string
}

// Message is a message leased from the queue via Receive.
type Message struct {
	ID            string            `json:"id"`
	Body          json.RawMessage   `json:"body"`
	ReceiptHandle string            `json:"receipt_handle"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	DeliveryCount int               `json:"delivery_count"`
	MaxRetries    int               `json:"max_retries"`
}

// Enqueue sends a message to a queue and returns its id.
func (c *Client) Enqueue(ctx context.Context, queue string, body any, opts *EnqueueOptions) (string, error) {
	if opts == nil {
		opts = &EnqueueOptions{}
	}

	bodyJSON, err := sonic.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}

	req := map[string]any{"body": json.RawMessage(bodyJSON)}
	if opts.Delay > 0 {
		req["delay_ms"] = int(opts.Delay.Milliseconds())
	}
	if opts.MaxRetries > 0 {
		req["max_retries"] = opts.MaxRetries
	}
	if opts.DLQ != "" {
		req["dlq"] = opts.DLQ
	}
	if opts.TraceID != "" {
		req["trace_id"] = opts.TraceID
	}
	if len(opts.Attributes) > 0 {
		req["attributes"] = opts.Attributes
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "POST", fmt.Sprintf("/v1/queues/%s/messages", queue), req, http.StatusCreated, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// Receive leases up to max messages from a queue, long-polling the server
// for up to wait before returning an empty result.
func (c *Client) Receive(ctx context.Context, queue string, max int, visibility, wait time.Duration) ([]Message, error) {
	req := map[string]any{
		"max":           max,
		"visibility_ms": int(visibility.Milliseconds()),
		"wait_ms":       int(wait.Milliseconds()),
	}

	// The server holds the request open for up to wait; give the HTTP
	// client enough headroom on top of that for the round trip itself.
	reqCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, wait+10*time.Second)
		defer cancel()
	}

	var messages []Message
	if err := c.do(reqCtx, "POST", fmt.Sprintf("/v1/queues/%s:receive", queue), req, http.StatusOK, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Ack acknowledges a message, proving possession via its receipt handle.
func (c *Client) Ack(ctx context.Context, id, receiptHandle string) error {
	req := map[string]any{"receipt_handle": receiptHandle}
	return c.do(ctx, "POST", fmt.Sprintf("/v1/messages/%s:ack", id), req, http.StatusOK, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s: %s - %s", method, path, resp.Status, string(respBody))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return sonic.Unmarshal(respBody, out)
}
