package queueadapter

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/glennschmidt/fcgiq/internal/item"
)

// sqsClient is the subset of *sqs.Client this package depends on, narrowed
// to an interface so tests can substitute a fake without a real AWS call.
type sqsClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSAdapter is the primary Adapter implementation, backed by AWS SQS (or
// whatever endpoint the wrapped client was configured with).
type SQSAdapter struct {
	client            sqsClient
	queueURL          string
	visibilityTimeout int32
}

// NewSQSAdapter wraps an already-configured *sqs.Client and uses it as is.
// The dispatcher builds that client with default AWS endpoint resolution;
// when Config.Queue.Sqs.APIEndpointURL is set it uses LocalQueueAdapter
// instead of this type.
func NewSQSAdapter(client *sqs.Client, queueURL string, visibilityTimeout int32) *SQSAdapter {
	return &SQSAdapter{
		client:            client,
		queueURL:          queueURL,
		visibilityTimeout: visibilityTimeout,
	}
}

// Receive issues a ReceiveMessage long poll requesting at most one message,
// all user message attributes, and all system attributes.
func (a *SQSAdapter) Receive(ctx context.Context, wait time.Duration) (*item.Item, error) {
	out, err := a.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(a.queueURL),
		MaxNumberOfMessages:  1,
		WaitTimeSeconds:      int32(wait.Truncate(time.Second).Seconds()),
		VisibilityTimeout:    a.visibilityTimeout,
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameAll,
		},
	})
	if err != nil {
		return nil, &QueueError{Kind: KindReceive, Err: err}
	}

	if len(out.Messages) == 0 {
		return nil, nil
	}

	return messageToItem(out.Messages[0])
}

func messageToItem(msg types.Message) (*item.Item, error) {
	if msg.MessageId == nil || *msg.MessageId == "" {
		return nil, &QueueError{Kind: KindMissingID, Err: errors.New("message missing id")}
	}
	if msg.ReceiptHandle == nil || *msg.ReceiptHandle == "" {
		return nil, &QueueError{Kind: KindMissingReceipt, Err: errors.New("message missing receipt handle")}
	}

	it := &item.Item{
		ID:       *msg.MessageId,
		Metadata: map[string]string{"receipt_handle": *msg.ReceiptHandle},
	}
	if msg.Body != nil {
		it.Data = []byte(*msg.Body)
	}

	// User message attributes: only string-valued entries are copied.
	for k, v := range msg.MessageAttributes {
		if v.StringValue != nil {
			it.Metadata[k] = *v.StringValue
		}
	}

	// System attributes: copied unconditionally.
	for k, v := range msg.Attributes {
		it.Metadata[k] = v
	}

	return it, nil
}

// Acknowledge deletes the message using the receipt handle stashed in the
// Item's metadata at receive time.
func (a *SQSAdapter) Acknowledge(ctx context.Context, it *item.Item) error {
	receipt, ok := it.ReceiptHandle()
	if !ok {
		return &QueueError{Kind: KindMissingReceipt, Err: errors.New("item missing receipt handle")}
	}

	_, err := a.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(a.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return &QueueError{Kind: KindDelete, Err: err}
	}
	return nil
}
