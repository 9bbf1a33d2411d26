package notification

import (
	model "auction-engine/internal/models"
	"auction-engine/utils"
	"context"
	"errors"
	"sync"
	"time"
)

// Port delivers a notification to a user. Engine code treats it as
// fire-and-forget: errors are logged, never propagated.
type Port interface {
	Notify(ctx context.Context, n model.Notification) error
}

// New builds a Notification stamped with the current time
func New(userID string, event model.EventType, payload map[string]any) model.Notification {
	return model.Notification{
		UserID:    userID,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// Send delivers n through port and swallows any failure
func Send(ctx context.Context, port Port, n model.Notification) {
	if port == nil || n.UserID == "" {
		return
	}
	if err := port.Notify(ctx, n); err != nil {
		utils.Warn("notification delivery failed", map[string]any{
			"user_id": n.UserID,
			"event":   string(n.Event),
			"error":   err.Error(),
		})
	}
}

// LogNotifier writes notifications to the application log
type LogNotifier struct{}

// Notify logs the notification at info level
func (LogNotifier) Notify(_ context.Context, n model.Notification) error {
	utils.Info("notification", map[string]any{
		"user_id": n.UserID,
		"event":   string(n.Event),
		"payload": n.Payload,
	})
	return nil
}

// MultiNotifier fans a notification out to several sinks
type MultiNotifier []Port

// Notify delivers to every sink and joins their errors
func (m MultiNotifier) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, p := range m {
		if err := p.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every notification in memory. Used by tests and by the
// development server to inspect what was sent.
type Recorder struct {
	mu   sync.Mutex
	sent []model.Notification
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify records n
func (r *Recorder) Notify(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// All returns a copy of everything recorded
func (r *Recorder) All() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.sent...)
}

// For returns the notifications sent to userID, optionally filtered by event
func (r *Recorder) For(userID string, events ...model.EventType) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Notification
	for _, n := range r.sent {
		if n.UserID != userID {
			continue
		}
		if len(events) > 0 && !containsEvent(events, n.Event) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Count returns how many notifications of the given type were sent
func (r *Recorder) Count(event model.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := 0
	for _, n := range r.sent {
		if n.Event == event {
			c++
		}
	}
	return c
}

// Reset drops everything recorded so far
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

func containsEvent(events []model.EventType, e model.EventType) bool {
	for _, x := range events {
		if x == e {
			return true
		}
	}
	return false
}
