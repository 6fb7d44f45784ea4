package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = models.ErrNoMessage

// FinalFailureHandler runs when a message has spent its delivery budget and
// is being discarded. It is the queue's guaranteed last word on a job, used
// to force the owning page into a terminal state.
type FinalFailureHandler func(msg *models.ScrapeMessage, attempts int, cause error)

// envelope is the internal structure stored in Badger around each message.
type envelope struct {
	ID         string               `json:"id"`
	Body       models.ScrapeMessage `json:"body"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
	VisibleAt  time.Time            `json:"visible_at"`
	Attempts   int                  `json:"attempts"` // receive count
}

// Delivery is one claimed message plus the bookkeeping the worker needs to
// settle it.
type Delivery struct {
	Message  *models.ScrapeMessage
	Attempts int

	id string
}

// Manager implements a durable at-least-once queue on BadgerDB.
//
// Layout: message data lives at queue:{name}:msg:{id}; a visibility index
// entry at queue:{name}:index:{visibleAt}:{id} orders messages by the time
// they become deliverable. Claiming a message moves its index entry out by
// the visibility timeout, so a crashed worker's message resurfaces on its
// own.
type Manager struct {
	db                *badger.DB
	queueName         string
	visibilityTimeout time.Duration
	policy            RetryPolicy
	onFinalFailure    FinalFailureHandler
	logger            arbor.ILogger
}

// NewManager creates a new Badger-backed queue manager.
func NewManager(db *badger.DB, queueName string, visibilityTimeout time.Duration, policy RetryPolicy, logger arbor.ILogger) (*Manager, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" || strings.Contains(queueName, ":") {
		return nil, fmt.Errorf("invalid queue name: %q", queueName)
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 2 * time.Minute
	}
	if policy.MaxAttempts < 1 {
		policy = DefaultRetryPolicy()
	}

	return &Manager{
		db:                db,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		policy:            policy,
		logger:            logger,
	}, nil
}

// Policy returns the retry policy the queue was built with.
func (m *Manager) Policy() RetryPolicy {
	return m.policy
}

// OnFinalFailure registers the handler invoked when a message exhausts its
// delivery budget. Must be set before workers start.
func (m *Manager) OnFinalFailure(fn FinalFailureHandler) {
	m.onFinalFailure = fn
}

// Enqueue adds a message to the queue, immediately visible.
func (m *Manager) Enqueue(ctx context.Context, msg *models.ScrapeMessage) error {
	env := envelope{
		ID:         uuid.New().String(),
		Body:       *msg,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now(),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(m.msgKey(env.ID), data); err != nil {
			return err
		}
		return txn.Set(m.indexKey(env.VisibleAt, env.ID), []byte{})
	})
}

// Receive claims the next visible message. The claim pushes the message's
// visibility out by the visibility timeout; a worker that dies mid-job
// loses the claim, and the message is redelivered.
func (m *Manager) Receive(ctx context.Context) (*Delivery, error) {
	var claimed *envelope

	err := m.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(fmt.Sprintf("queue:%s:index:", m.queueName))
		now := time.Now()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := m.parseIndexKey(key)
			if err != nil {
				continue
			}
			// Index keys sort by timestamp; the first future entry means
			// nothing else is ready either.
			if ts.After(now) {
				break
			}

			item, err := txn.Get(m.msgKey(id))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					// Orphaned index entry, clean it up and move on
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			var env envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}

			env.Attempts++
			env.VisibleAt = now.Add(m.visibilityTimeout)

			data, err := json.Marshal(env)
			if err != nil {
				return err
			}
			if err := txn.Set(m.msgKey(id), data); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Set(m.indexKey(env.VisibleAt, id), []byte{}); err != nil {
				return err
			}

			claimed = &env
			return nil
		}

		return ErrNoMessage
	})
	if err != nil {
		return nil, err
	}

	return &Delivery{
		Message:  &claimed.Body,
		Attempts: claimed.Attempts,
		id:       claimed.ID,
	}, nil
}

// Ack settles a successfully processed delivery.
func (m *Manager) Ack(d *Delivery) error {
	return m.remove(d.id)
}

// Nack settles a failed delivery. While the retry budget lasts, the message
// is re-indexed with the policy's backoff delay; retries queue behind other
// pending work rather than retrying in place. Once the budget is spent the
// message is discarded and the final-failure handler runs.
func (m *Manager) Nack(d *Delivery, cause error) error {
	if m.policy.Exhausted(d.Attempts) {
		if err := m.remove(d.id); err != nil {
			return err
		}
		m.logger.Warn().
			Str("page_id", d.Message.PageID).
			Int("attempts", d.Attempts).
			Err(cause).
			Msg("Scrape job exhausted retry budget")
		if m.onFinalFailure != nil {
			m.onFinalFailure(d.Message, d.Attempts, cause)
		}
		return nil
	}

	delay := m.policy.Delay(d.Attempts)
	visibleAt := time.Now().Add(delay)

	err := m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(m.msgKey(d.id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil // already settled elsewhere
			}
			return err
		}

		var env envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		oldIndex := m.indexKey(env.VisibleAt, d.id)
		env.VisibleAt = visibleAt

		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := txn.Set(m.msgKey(d.id), data); err != nil {
			return err
		}
		if err := txn.Delete(oldIndex); err != nil {
			return err
		}
		return txn.Set(m.indexKey(visibleAt, d.id), []byte{})
	})
	if err != nil {
		return fmt.Errorf("failed to requeue message: %w", err)
	}

	m.logger.Debug().
		Str("page_id", d.Message.PageID).
		Int("attempts", d.Attempts).
		Dur("retry_delay", delay).
		Msg("Scrape job requeued with backoff")
	return nil
}

// Depth returns the number of messages currently stored, visible or not.
func (m *Manager) Depth() (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(fmt.Sprintf("queue:%s:msg:", m.queueName))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (m *Manager) remove(id string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(m.msgKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		var env envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		if err := txn.Delete(m.indexKey(env.VisibleAt, id)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Delete(m.msgKey(id))
	})
}

func (m *Manager) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", m.queueName, id))
}

func (m *Manager) indexKey(visibleAt time.Time, id string) []byte {
	// Zero-padded nanoseconds keep lexical and chronological order aligned
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", m.queueName, visibleAt.UnixNano(), id))
}

func (m *Manager) parseIndexKey(key []byte) (time.Time, string, error) {
	parts := strings.SplitN(string(key), ":", 5)
	if len(parts) != 5 {
		return time.Time{}, "", fmt.Errorf("malformed index key: %s", key)
	}

	var nanos int64
	if _, err := fmt.Sscanf(parts[3], "%d", &nanos); err != nil {
		return time.Time{}, "", fmt.Errorf("malformed index timestamp: %s", parts[3])
	}

	return time.Unix(0, nanos), parts[4], nil
}
