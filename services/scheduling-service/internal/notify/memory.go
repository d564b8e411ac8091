package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// MemoryDispatcher keeps notices in process. It backs the memory store mode
// and tests.
type MemoryDispatcher struct {
	mu      sync.Mutex
	notices []Notice
	logger  *slog.Logger
	err     error
}

func NewMemoryDispatcher(logger *slog.Logger) *MemoryDispatcher {
	return &MemoryDispatcher{logger: logger}
}

func (d *MemoryDispatcher) Notify(_ context.Context, n Notice) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	d.notices = append(d.notices, n)
	id := uuid.NewString()
	if d.logger != nil {
		d.logger.Info("notification recorded",
			"notification_id", id,
			"recipient", n.Recipient.String(),
			"type", n.Type,
			"appointment_id", n.AppointmentID,
		)
	}
	return id, nil
}

// FailWith makes every later Notify return err. Pass nil to recover.
func (d *MemoryDispatcher) FailWith(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *MemoryDispatcher) Notices() []Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notice(nil), d.notices...)
}

func (d *MemoryDispatcher) Reset() {
	d.mu.Lock()
	d.notices = nil
	d.mu.Unlock()
}
