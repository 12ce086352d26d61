package queueadapter

import (
	"context"
	"errors"
	"time"

	"github.com/glennschmidt/fcgiq/internal/item"
	"github.com/glennschmidt/fcgiq/pkg/localqueueclient"
)

// localQueueClient is the subset of *localqueueclient.Client this package
// depends on, narrowed to an interface for testing.
type localQueueClient interface {
	Receive(ctx context.Context, queue string, max int, visibility, wait time.Duration) ([]localqueueclient.Message, error)
	Ack(ctx context.Context, id, receiptHandle string) error
}

// LocalQueueAdapter is an alternate Adapter implementation that talks to the
// local reference queue service (cmd/localqueue) over HTTP instead of real
// AWS SQS. It is selected when Config.Queue.Sqs.APIEndpointURL is set.
type LocalQueueAdapter struct {
	client            localQueueClient
	queue             string
	visibilityTimeout time.Duration
}

func NewLocalQueueAdapter(client *localqueueclient.Client, queue string, visibilityTimeout time.Duration) *LocalQueueAdapter {
	return &LocalQueueAdapter{
		client:            client,
		queue:             queue,
		visibilityTimeout: visibilityTimeout,
	}
}

func (a *LocalQueueAdapter) Receive(ctx context.Context, wait time.Duration) (*item.Item, error) {
	messages, err := a.client.Receive(ctx, a.queue, 1, a.visibilityTimeout, wait)
	if err != nil {
		return nil, &QueueError{Kind: KindReceive, Err: err}
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return messageToLocalItem(messages[0])
}

func messageToLocalItem(m localqueueclient.Message) (*item.Item, error) {
	if m.ID == "" {
		return nil, &QueueError{Kind: KindMissingID, Err: errors.New("message missing id")}
	}
	if m.ReceiptHandle == "" {
		return nil, &QueueError{Kind: KindMissingReceipt, Err: errors.New("message missing receipt handle")}
	}

	it := &item.Item{
		ID:       m.ID,
		Data:     m.Body,
		Metadata: map[string]string{"receipt_handle": m.ReceiptHandle},
	}
	for k, v := range m.Attributes {
		it.Metadata[k] = v
	}
	return it, nil
}

func (a *LocalQueueAdapter) Acknowledge(ctx context.Context, it *item.Item) error {
	receipt, ok := it.ReceiptHandle()
	if !ok {
		return &QueueError{Kind: KindMissingReceipt, Err: errors.New("item missing receipt handle")}
	}

	if err := a.client.Ack(ctx, it.ID, receipt); err != nil {
		return &QueueError{Kind: KindDelete, Err: err}
	}
	return nil
}
