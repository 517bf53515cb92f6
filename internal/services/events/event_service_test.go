package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/interfaces"
)

func TestService_PublishDeliversAsync(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	received := make(chan interfaces.Event, 1)
	require.NoError(t, service.Subscribe(interfaces.EventRunUploaded, func(ctx context.Context, event interfaces.Event) error {
		received <- event
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, service.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventRunUploaded,
		Payload: map[string]interface{}{"run_id": "run-1"},
	}))
	cancel()

	select {
	case event := <-received:
		assert.Equal(t, interfaces.EventRunUploaded, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestService_PublishSyncCollectsErrors(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var calls atomic.Int32
	boom := errors.New("boom")
	require.NoError(t, service.Subscribe(interfaces.EventAttributesSaved, func(ctx context.Context, event interfaces.Event) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, service.Subscribe(interfaces.EventAttributesSaved, func(ctx context.Context, event interfaces.Event) error {
		calls.Add(1)
		return boom
	}))

	err := service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventAttributesSaved})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestService_HandlerPanicRecovered(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	require.NoError(t, service.Subscribe(interfaces.EventRunDeleted, func(ctx context.Context, event interfaces.Event) error {
		panic("handler exploded")
	}))

	assert.NoError(t, service.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventRunDeleted}))
}

func TestService_SubscribeNilHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	assert.Error(t, service.Subscribe(interfaces.EventRunUploaded, nil))
}

func TestService_CloseWaitsForHandlers(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var done atomic.Bool
	require.NoError(t, service.Subscribe(interfaces.EventLookupFileChanged, func(ctx context.Context, event interfaces.Event) error {
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
		return nil
	}))

	require.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventLookupFileChanged}))
	require.NoError(t, service.Close())
	assert.True(t, done.Load())

	// No subscribers remain after Close
	assert.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventLookupFileChanged}))
}

func TestLoggerSubscriber(t *testing.T) {
	subscriber := NewLoggerSubscriber(arbor.NewLogger())

	assert.NoError(t, subscriber(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunUploaded,
		Payload: map[string]interface{}{"run_id": "run-1", "path": "/tmp/x"},
	}))
	assert.NoError(t, subscriber(context.Background(), interfaces.Event{Type: interfaces.EventAttributesSaved}))
}
