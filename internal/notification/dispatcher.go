package notification

import (
	model "auction-engine/internal/models"
	"auction-engine/utils"
	"context"
	"sync"
	"time"
)

// Dispatcher hands notifications to a sink on background workers so that
// a slow or failing sink never delays a bid or a settlement
type Dispatcher struct {
	sink    Port
	queue   chan model.Notification
	timeout time.Duration

	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewDispatcher starts workers that deliver queued notifications to sink
func NewDispatcher(sink Port, buffer, workers int) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if workers <= 0 {
		workers = 1
	}

	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan model.Notification, buffer),
		timeout: 5 * time.Second,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Notify enqueues n. A full queue drops the notification with a warning.
func (d *Dispatcher) Notify(_ context.Context, n model.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		utils.Warn("notification dropped: dispatcher closed", map[string]any{"user_id": n.UserID, "event": string(n.Event)})
		return nil
	}

	select {
	case d.queue <- n:
	default:
		utils.Warn("notification dropped: queue full", map[string]any{"user_id": n.UserID, "event": string(n.Event)})
	}
	return nil
}

// Close stops accepting notifications and waits for the queue to drain
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		Send(ctx, d.sink, n)
		cancel()
	}
}
