// Package events forwards committed directory changes to the job queue.
package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hpcadmin/server/internal/directory"
	"github.com/hpcadmin/server/pkg/queue"
)

// Enqueuer is the part of queue.Queue the notifier needs.
type Enqueuer interface {
	EnqueueDirectoryEvent(ctx context.Context, payload queue.DirectoryEventPayload) error
}

var _ Enqueuer = (*queue.Queue)(nil)

// QueueNotifier turns directory events into directory_event jobs.
type QueueNotifier struct {
	queue  Enqueuer
	logger *zap.Logger
}

var _ directory.Notifier = (*QueueNotifier)(nil)

// NewQueueNotifier creates a notifier on q.
func NewQueueNotifier(q Enqueuer, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{queue: q, logger: logger}
}

// Notify enqueues event.
func (n *QueueNotifier) Notify(ctx context.Context, event directory.Event) error {
	payload := queue.DirectoryEventPayload{
		Type:    string(event.Type),
		UserID:  event.UserID,
		PirgID:  event.PirgID,
		GroupID: event.GroupID,
		At:      event.At,
	}
	if err := n.queue.EnqueueDirectoryEvent(ctx, payload); err != nil {
		return fmt.Errorf("enqueue %s: %w", event.Type, err)
	}
	n.logger.Debug("directory event queued", zap.String("event", string(event.Type)))
	return nil
}
