package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultFastInterval is the poll rate right after a submission or reset.
	DefaultFastInterval = 500 * time.Millisecond
	// DefaultSlowInterval is the steady poll rate while work is in flight.
	DefaultSlowInterval = 2 * time.Second
	// DefaultBurstWindow is how long the fast rate lasts.
	DefaultBurstWindow = 5 * time.Second
)

// API is the server surface the engine needs. *Client satisfies it; tests
// substitute a fake.
type API interface {
	ListPages(ctx context.Context) ([]Page, error)
	CreatePage(ctx context.Context, url string) (*SubmitResult, error)
	RetryPage(ctx context.Context, pageID string) (*SubmitResult, error)
}

// Notifier is called once per newly observed (pageID, status) pair.
type Notifier func(pageID string, status Status)

// Options tune the polling schedule.
type Options struct {
	FastInterval time.Duration
	SlowInterval time.Duration
	BurstWindow  time.Duration
}

// Engine owns the client page list: optimistic submission, snapshot
// merging, the poll timer with its fast-mode deadline, and the notified
// set. Construct one per session and tear it down with Stop.
type Engine struct {
	api     API
	history Store
	notify  Notifier

	fastInterval time.Duration
	slowInterval time.Duration
	burstWindow  time.Duration

	mu        sync.Mutex
	entries   []Entry
	seq       int
	fastUntil time.Time
	running   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup

	polls atomic.Int64
}

// NewEngine creates an engine. history must not be nil; notify may be.
func NewEngine(api API, history Store, notify Notifier, opts *Options) *Engine {
	e := &Engine{
		api:          api,
		history:      history,
		notify:       notify,
		fastInterval: DefaultFastInterval,
		slowInterval: DefaultSlowInterval,
		burstWindow:  DefaultBurstWindow,
	}
	if opts != nil {
		if opts.FastInterval > 0 {
			e.fastInterval = opts.FastInterval
		}
		if opts.SlowInterval > 0 {
			e.slowInterval = opts.SlowInterval
		}
		if opts.BurstWindow > 0 {
			e.burstWindow = opts.BurstWindow
		}
	}
	return e
}

// Entries returns a snapshot of the current view list.
func (e *Engine) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

// PollCount reports how many refreshes have run. Once every entry is
// terminal the count stabilizes.
func (e *Engine) PollCount() int64 {
	return e.polls.Load()
}

// Submit optimistically prepends a provisional pending row, then performs
// the create call. On success the row is confirmed in place and polling
// (re)enters the fast window. Failure handling follows the submission
// contract: conflicts and auth failures drop the row, anything else flips
// it to failed so the user can see what broke.
func (e *Engine) Submit(ctx context.Context, pageURL string) (*SubmitResult, error) {
	e.mu.Lock()
	e.seq++
	localID := fmt.Sprintf("temp-%d", e.seq)
	entry := Entry{
		Ref:    NewProvisionalRef(localID),
		URL:    pageURL,
		Status: StatusPending,
	}
	e.entries = append([]Entry{entry}, e.entries...)
	e.mu.Unlock()

	result, err := e.api.CreatePage(ctx, pageURL)
	if err != nil {
		var conflictErr *ConflictError
		switch {
		case errors.As(err, &conflictErr):
			e.removeEntry(localID)
		case errors.Is(err, ErrUnauthorized):
			e.removeEntry(localID)
		default:
			e.failEntry(localID)
		}
		return nil, err
	}

	e.mu.Lock()
	for i := range e.entries {
		if e.entries[i].Ref.IsProvisional() && e.entries[i].Ref.ID() == localID {
			e.entries[i] = EntryFromPage(result.Page)
			break
		}
	}
	e.fastUntil = time.Now().Add(e.burstWindow)
	e.startLocked()
	e.mu.Unlock()

	return result, nil
}

// Retry re-queues a failed page and re-enters the fast polling window.
func (e *Engine) Retry(ctx context.Context, pageID string) (*SubmitResult, error) {
	result, err := e.api.RetryPage(ctx, pageID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	for i := range e.entries {
		if !e.entries[i].Ref.IsProvisional() && e.entries[i].Ref.ID() == pageID {
			e.entries[i] = EntryFromPage(result.Page)
			break
		}
	}
	e.fastUntil = time.Now().Add(e.burstWindow)
	e.startLocked()
	e.mu.Unlock()

	return result, nil
}

// Start begins polling with a fresh fast window. Safe to call repeatedly.
func (e *Engine) Start() {
	e.mu.Lock()
	e.fastUntil = time.Now().Add(e.burstWindow)
	e.startLocked()
	e.mu.Unlock()
}

// Reset restarts the fast window, re-arming polling if it had stopped.
func (e *Engine) Reset() {
	e.Start()
}

// Stop halts polling and waits for the loop to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.running && e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
		e.running = false
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// Refresh performs one poll: fetch the snapshot, merge, announce newly
// observed transitions.
func (e *Engine) Refresh(ctx context.Context) error {
	e.polls.Add(1)

	snapshot, err := e.api.ListPages(ctx)
	if err != nil {
		return err
	}

	type announcement struct {
		pageID string
		status Status
	}
	var pending []announcement

	e.mu.Lock()
	e.entries = Merge(e.entries, snapshot)
	for _, entry := range e.entries {
		if entry.Ref.IsProvisional() || entry.Status == "" {
			continue
		}
		id := entry.Ref.ID()
		if !e.history.Seen(id, entry.Status) {
			pending = append(pending, announcement{pageID: id, status: entry.Status})
		}
	}
	e.mu.Unlock()

	for _, a := range pending {
		if err := e.history.MarkSeen(a.pageID, a.status); err != nil {
			return fmt.Errorf("failed to record notification: %w", err)
		}
		if e.notify != nil {
			e.notify(a.pageID, a.status)
		}
	}

	return nil
}

// startLocked launches the poll loop if it is not already running.
// Caller holds e.mu.
func (e *Engine) startLocked() {
	if e.running {
		return
	}
	e.running = true
	stop := make(chan struct{})
	e.stopCh = stop
	e.wg.Add(1)
	go e.loop(stop)
}

func (e *Engine) loop(stop chan struct{}) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		if e.stopCh == stop {
			e.running = false
			e.stopCh = nil
		}
		e.mu.Unlock()
	}()

	ctx := context.Background()
	e.Refresh(ctx)

	for {
		interval, active := e.nextInterval()
		if !active {
			return
		}

		select {
		case <-stop:
			return
		case <-time.After(interval):
		}

		e.Refresh(ctx)
	}
}

// nextInterval picks the poll cadence: fast inside the burst window, slow
// after, none once every entry is terminal.
func (e *Engine) nextInterval() (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	anyActive := false
	for _, entry := range e.entries {
		if entry.Status.IsActive() {
			anyActive = true
			break
		}
	}
	if !anyActive {
		return 0, false
	}

	if time.Now().Before(e.fastUntil) {
		return e.fastInterval, true
	}
	return e.slowInterval, true
}

func (e *Engine) removeEntry(localID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.entries {
		if e.entries[i].Ref.IsProvisional() && e.entries[i].Ref.ID() == localID {
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			return
		}
	}
}

func (e *Engine) failEntry(localID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.entries {
		if e.entries[i].Ref.IsProvisional() && e.entries[i].Ref.ID() == localID {
			e.entries[i].Status = StatusFailed
			return
		}
	}
}
