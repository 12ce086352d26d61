package queueadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glennschmidt/fcgiq/internal/item"
	"github.com/glennschmidt/fcgiq/pkg/localqueueclient"
)

type fakeLocalQueueClient struct {
	receiveOut []localqueueclient.Message
	receiveErr error
	ackErr     error

	lastAckID      string
	lastAckReceipt string
}

func (f *fakeLocalQueueClient) Receive(ctx context.Context, queue string, max int, visibility, wait time.Duration) ([]localqueueclient.Message, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	return f.receiveOut, nil
}

func (f *fakeLocalQueueClient) Ack(ctx context.Context, id, receiptHandle string) error {
	f.lastAckID = id
	f.lastAckReceipt = receiptHandle
	return f.ackErr
}

func TestLocalQueueAdapterReceiveEmpty(t *testing.T) {
	fake := &fakeLocalQueueClient{}
	a := &LocalQueueAdapter{client: fake, queue: "q"}

	it, err := a.Receive(context.Background(), 20*time.Second)
	require.NoError(t, err)
	assert.Nil(t, it)
}

func TestLocalQueueAdapterReceiveSuccess(t *testing.T) {
	fake := &fakeLocalQueueClient{
		receiveOut: []localqueueclient.Message{
			{ID: "m1", ReceiptHandle: "r1", Body: []byte(`{"user":"alice"}`), Attributes: map[string]string{"trace_id": "t1"}},
		},
	}
	a := &LocalQueueAdapter{client: fake, queue: "q"}

	it, err := a.Receive(context.Background(), 20*time.Second)
	require.NoError(t, err)
	require.NotNil(t, it)

	assert.Equal(t, "m1", it.ID)
	assert.Equal(t, `{"user":"alice"}`, string(it.Data))
	assert.Equal(t, "r1", it.Metadata["receipt_handle"])
	assert.Equal(t, "t1", it.Metadata["trace_id"])
}

func TestLocalQueueAdapterReceiveMissingID(t *testing.T) {
	fake := &fakeLocalQueueClient{receiveOut: []localqueueclient.Message{{ReceiptHandle: "r1"}}}
	a := &LocalQueueAdapter{client: fake, queue: "q"}

	_, err := a.Receive(context.Background(), time.Second)
	require.Error(t, err)
	var qerr *QueueError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindMissingID, qerr.Kind)
}

func TestLocalQueueAdapterReceiveMissingReceipt(t *testing.T) {
	fake := &fakeLocalQueueClient{receiveOut: []localqueueclient.Message{{ID: "m1"}}}
	a := &LocalQueueAdapter{client: fake, queue: "q"}

	_, err := a.Receive(context.Background(), time.Second)
	require.Error(t, err)
	var qerr *QueueError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindMissingReceipt, qerr.Kind)
}

func TestLocalQueueAdapterReceiveTransportError(t *testing.T) {
	fake := &fakeLocalQueueClient{receiveErr: errors.New("boom")}
	a := &LocalQueueAdapter{client: fake, queue: "q"}

	_, err := a.Receive(context.Background(), time.Second)
	require.Error(t, err)
	var qerr *QueueError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindReceive, qerr.Kind)
}

func TestLocalQueueAdapterAcknowledge(t *testing.T) {
	fake := &fakeLocalQueueClient{}
	a := &LocalQueueAdapter{client: fake, queue: "q"}

	it := &item.Item{ID: "m1", Metadata: map[string]string{"receipt_handle": "r1"}}
	err := a.Acknowledge(context.Background(), it)
	require.NoError(t, err)
	assert.Equal(t, "m1", fake.lastAckID)
	assert.Equal(t, "r1", fake.lastAckReceipt)
}

func TestLocalQueueAdapterAcknowledgeMissingReceipt(t *testing.T) {
	fake := &fakeLocalQueueClient{}
	a := &LocalQueueAdapter{client: fake, queue: "q"}

	it := &item.Item{ID: "m1", Metadata: map[string]string{}}
	err := a.Acknowledge(context.Background(), it)
	require.Error(t, err)
	var qerr *QueueError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindMissingReceipt, qerr.Kind)
}
