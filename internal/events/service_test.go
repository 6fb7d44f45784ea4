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
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

func TestService_PublishReachesSubscribers(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	received := make(chan interfaces.Event, 2)
	handler := func(ctx context.Context, event interfaces.Event) error {
		received <- event
		return nil
	}
	require.NoError(t, service.Subscribe(interfaces.EventPageStatusChanged, handler))
	require.NoError(t, service.Subscribe(interfaces.EventPageStatusChanged, handler))

	payload := models.PageEvent{PageID: "p1", Status: models.PageStatusCompleted}
	require.NoError(t, service.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventPageStatusChanged,
		Payload: payload,
	}))

	for i := 0; i < 2; i++ {
		select {
		case event := <-received:
			got, ok := event.Payload.(models.PageEvent)
			require.True(t, ok)
			assert.Equal(t, "p1", got.PageID)
		case <-time.After(2 * time.Second):
			t.Fatal("handler never received the event")
		}
	}
}

func TestService_PublishIgnoresOtherTypes(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	var calls atomic.Int32
	require.NoError(t, service.Subscribe(interfaces.EventPageDeleted, func(ctx context.Context, event interfaces.Event) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventPageCreated}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestService_SubscribeRejectsNilHandler(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	assert.Error(t, service.Subscribe(interfaces.EventPageCreated, nil))
}

func TestService_HandlerErrorDoesNotBlockOthers(t *testing.T) {
	service := NewService(arbor.NewLogger())
	defer service.Close()

	require.NoError(t, service.Subscribe(interfaces.EventPageCreated, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("handler broke")
	}))

	received := make(chan struct{}, 1)
	require.NoError(t, service.Subscribe(interfaces.EventPageCreated, func(ctx context.Context, event interfaces.Event) error {
		received <- struct{}{}
		return nil
	}))

	require.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventPageCreated}))

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler never ran")
	}
}

func TestService_CloseDropsSubscribers(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var calls atomic.Int32
	require.NoError(t, service.Subscribe(interfaces.EventPageCreated, func(ctx context.Context, event interfaces.Event) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, service.Close())
	require.NoError(t, service.Publish(context.Background(), interfaces.Event{Type: interfaces.EventPageCreated}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
