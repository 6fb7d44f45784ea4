package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

func newTestManager(t *testing.T, visibility time.Duration, policy RetryPolicy) *Manager {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	manager, err := NewManager(db, "scrape", visibility, policy, arbor.NewLogger())
	require.NoError(t, err)
	return manager
}

func testScrapeMessage(pageID string) *models.ScrapeMessage {
	return &models.ScrapeMessage{
		PageID:  pageID,
		JobID:   "job-" + pageID,
		URL:     "https://example.com/" + pageID,
		OwnerID: "owner-1",
	}
}

func TestNewManager(t *testing.T) {
	t.Run("RejectsNilDB", func(t *testing.T) {
		_, err := NewManager(nil, "scrape", time.Minute, DefaultRetryPolicy(), arbor.NewLogger())
		assert.Error(t, err)
	})

	t.Run("RejectsQueueNameWithSeparator", func(t *testing.T) {
		db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
		require.NoError(t, err)
		defer db.Close()

		_, err = NewManager(db, "scrape:jobs", time.Minute, DefaultRetryPolicy(), arbor.NewLogger())
		assert.Error(t, err)

		_, err = NewManager(db, "", time.Minute, DefaultRetryPolicy(), arbor.NewLogger())
		assert.Error(t, err)
	})
}

func TestManager_EnqueueReceiveAck(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, time.Minute, DefaultRetryPolicy())

	require.NoError(t, manager.Enqueue(ctx, testScrapeMessage("page-1")))

	depth, err := manager.Depth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	delivery, err := manager.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "page-1", delivery.Message.PageID)
	assert.Equal(t, "job-page-1", delivery.Message.JobID)
	assert.Equal(t, "owner-1", delivery.Message.OwnerID)
	assert.Equal(t, 1, delivery.Attempts)

	require.NoError(t, manager.Ack(delivery))

	depth, err = manager.Depth()
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	_, err = manager.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestManager_ReceiveEmptyQueue(t *testing.T) {
	manager := newTestManager(t, time.Minute, DefaultRetryPolicy())

	_, err := manager.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestManager_ReceiveOrdersByEnqueueTime(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, time.Minute, DefaultRetryPolicy())

	require.NoError(t, manager.Enqueue(ctx, testScrapeMessage("first")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, manager.Enqueue(ctx, testScrapeMessage("second")))

	d1, err := manager.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", d1.Message.PageID)

	d2, err := manager.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", d2.Message.PageID)
}

func TestManager_ClaimHidesMessage(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, 100*time.Millisecond, DefaultRetryPolicy())

	require.NoError(t, manager.Enqueue(ctx, testScrapeMessage("page-1")))

	_, err := manager.Receive(ctx)
	require.NoError(t, err)

	// Claimed but unsettled, so a second receive sees nothing.
	_, err = manager.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)

	// Once the visibility timeout lapses the message resurfaces with a
	// bumped attempt count, as if the first worker had crashed.
	time.Sleep(150 * time.Millisecond)

	delivery, err := manager.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "page-1", delivery.Message.PageID)
	assert.Equal(t, 2, delivery.Attempts)
}

func TestManager_NackRedeliversAfterBackoff(t *testing.T) {
	ctx := context.Background()
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, Multiplier: 2}
	manager := newTestManager(t, time.Minute, policy)

	require.NoError(t, manager.Enqueue(ctx, testScrapeMessage("page-1")))

	delivery, err := manager.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, manager.Nack(delivery, errors.New("fetch failed")))

	// Still inside the backoff window.
	_, err = manager.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)

	time.Sleep(100 * time.Millisecond)

	redelivered, err := manager.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "page-1", redelivered.Message.PageID)
	assert.Equal(t, 2, redelivered.Attempts)

	depth, err := manager.Depth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestManager_NackExhaustedBudget(t *testing.T) {
	ctx := context.Background()
	policy := RetryPolicy{MaxAttempts: 1, BaseDelay: 10 * time.Millisecond, Multiplier: 2}
	manager := newTestManager(t, time.Minute, policy)

	var (
		failedMsg      *models.ScrapeMessage
		failedAttempts int
		failedCause    error
	)
	manager.OnFinalFailure(func(msg *models.ScrapeMessage, attempts int, cause error) {
		failedMsg = msg
		failedAttempts = attempts
		failedCause = cause
	})

	require.NoError(t, manager.Enqueue(ctx, testScrapeMessage("page-1")))

	delivery, err := manager.Receive(ctx)
	require.NoError(t, err)

	cause := errors.New("fetch failed")
	require.NoError(t, manager.Nack(delivery, cause))

	require.NotNil(t, failedMsg)
	assert.Equal(t, "page-1", failedMsg.PageID)
	assert.Equal(t, 1, failedAttempts)
	assert.Equal(t, cause, failedCause)

	// Discarded for good.
	depth, err := manager.Depth()
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	_, err = manager.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestManager_SurvivesAcrossManagers(t *testing.T) {
	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	first, err := NewManager(db, "scrape", time.Minute, DefaultRetryPolicy(), arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, first.Enqueue(ctx, testScrapeMessage("page-1")))

	// A fresh manager over the same store picks the message up, the way a
	// restarted process would.
	second, err := NewManager(db, "scrape", time.Minute, DefaultRetryPolicy(), arbor.NewLogger())
	require.NoError(t, err)

	delivery, err := second.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "page-1", delivery.Message.PageID)
}

func TestManager_QueueIsolation(t *testing.T) {
	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	scrape, err := NewManager(db, "scrape", time.Minute, DefaultRetryPolicy(), arbor.NewLogger())
	require.NoError(t, err)
	other, err := NewManager(db, "other", time.Minute, DefaultRetryPolicy(), arbor.NewLogger())
	require.NoError(t, err)

	require.NoError(t, scrape.Enqueue(ctx, testScrapeMessage("page-1")))

	_, err = other.Receive(ctx)
	assert.ErrorIs(t, err, ErrNoMessage)

	depth, err := other.Depth()
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestWorkerPool_ProcessesAndSettles(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, time.Minute, DefaultRetryPolicy())

	processed := make(chan string, 1)
	pool := NewWorkerPool(manager, func(ctx context.Context, msg *models.ScrapeMessage) error {
		processed <- msg.PageID
		return nil
	}, 10*time.Millisecond, 1, arbor.NewLogger())

	require.NoError(t, manager.Enqueue(ctx, testScrapeMessage("page-1")))

	pool.Start()
	defer pool.Stop()

	select {
	case pageID := <-processed:
		assert.Equal(t, "page-1", pageID)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the message")
	}

	// The successful handler acks the delivery, draining the queue.
	assert.Eventually(t, func() bool {
		depth, err := manager.Depth()
		return err == nil && depth == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerPool_HandlerErrorNacks(t *testing.T) {
	ctx := context.Background()
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: 10 * time.Millisecond, Multiplier: 2}
	manager := newTestManager(t, time.Minute, policy)

	finalFailure := make(chan int, 1)
	manager.OnFinalFailure(func(msg *models.ScrapeMessage, attempts int, cause error) {
		finalFailure <- attempts
	})

	pool := NewWorkerPool(manager, func(ctx context.Context, msg *models.ScrapeMessage) error {
		return errors.New("always fails")
	}, 10*time.Millisecond, 1, arbor.NewLogger())

	require.NoError(t, manager.Enqueue(ctx, testScrapeMessage("page-1")))

	pool.Start()
	defer pool.Stop()

	select {
	case attempts := <-finalFailure:
		assert.Equal(t, 2, attempts)
	case <-time.After(5 * time.Second):
		t.Fatal("message never exhausted its retry budget")
	}
}
