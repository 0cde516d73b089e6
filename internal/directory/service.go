package directory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EventType names a committed directory change.
type EventType string

const (
	EventUserCreated      EventType = "user.created"
	EventPirgCreated      EventType = "pirg.created"
	EventPirgUserAdded    EventType = "pirg.user_added"
	EventPirgUserRemoved  EventType = "pirg.user_removed"
	EventPirgAdminAdded   EventType = "pirg.admin_added"
	EventPirgAdminRemoved EventType = "pirg.admin_removed"
	EventGroupCreated     EventType = "group.created"
	EventGroupUserAdded   EventType = "group.user_added"
	EventGroupUserRemoved EventType = "group.user_removed"
	EventGroupDeleted     EventType = "group.deleted"
)

// Event describes one committed change. Zero ids are omitted.
type Event struct {
	Type    EventType `json:"type"`
	UserID  int64     `json:"user_id,omitempty"`
	PirgID  int64     `json:"pirg_id,omitempty"`
	GroupID int64     `json:"group_id,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier receives events after their transaction committed.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Service is the directory core: lifecycle orchestration, membership rules and
// lookups on top of a Store.
type Service struct {
	store           Store
	notifier        Notifier
	logger          *zap.Logger
	validateSponsor bool
	now             func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sends committed changes to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithSponsorValidation makes CreateUser reject sponsor ids that do not
// resolve to a user.
func WithSponsorValidation(enabled bool) Option {
	return func(s *Service) { s.validateSponsor = enabled }
}

// NewService creates a directory service on store.
func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// notify never fails the caller; the change is already committed.
func (s *Service) notify(ctx context.Context, ev Event) {
	if s.notifier == nil {
		return
	}
	ev.At = s.now().UTC()
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Error("directory event not delivered",
			zap.String("type", string(ev.Type)),
			zap.Int64("user_id", ev.UserID),
			zap.Int64("pirg_id", ev.PirgID),
			zap.Int64("group_id", ev.GroupID),
			zap.Error(err),
		)
	}
}
