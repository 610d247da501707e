package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
)

// staff-facing kinds that are also posted to the group chat
var chatKinds = map[NotificationKind]bool{
	NotifyApplicationCreated:    true,
	NotifyApplicationReminder:   true,
	NotifyThesisSubmitted:       true,
	NotifyPresentationScheduled: true,
}

// NotificationService fans a workflow notification out to every delivery channel.
// Channels fail independently; the joined error is only logged by the caller.
type NotificationService struct {
	hub          *SSEHub
	events       EventPublisher
	queue        TaskQueue
	email        *EmailService
	chat         config.ChatConfig
	chatAdapter  ChatAdapter
	emailEnabled func() bool
}

type NotificationOptions struct {
	Hub    *SSEHub
	Events EventPublisher
	Queue  TaskQueue
	Email  *EmailService
	Chat   config.ChatConfig
	// EmailEnabled is checked per notification so mail can be switched off at runtime
	EmailEnabled func() bool
}

func NewNotificationService(opts NotificationOptions) *NotificationService {
	s := &NotificationService{
		hub:          opts.Hub,
		events:       opts.Events,
		queue:        opts.Queue,
		email:        opts.Email,
		chat:         opts.Chat,
		emailEnabled: opts.EmailEnabled,
	}
	if s.events == nil {
		s.events = NoopEventPublisher{}
	}
	if s.emailEnabled == nil {
		s.emailEnabled = func() bool { return true }
	}
	if s.chat.Enabled && s.chat.Webhook != "" {
		s.chatAdapter = getChatAdapter(s.chat.Type)
	}
	return s
}

func (s *NotificationService) Notify(ctx context.Context, n *Notification) error {
	var errs []error

	if s.hub != nil {
		ids := make([]uuid.UUID, 0, len(n.Recipients))
		for _, r := range n.Recipients {
			ids = append(ids, r.UserID)
		}
		s.hub.Publish(WorkflowEvent{
			Kind:       n.Kind,
			EntityType: n.EntityType,
			EntityID:   n.EntityID,
			Title:      n.Title,
			Message:    n.Message,
			OccurredAt: n.OccurredAt,
		}, ids...)
	}

	if err := s.events.Publish(ctx, n); err != nil {
		errs = append(errs, err)
	}

	if s.queue != nil && s.email != nil && s.email.Enabled() && s.emailEnabled() {
		if task := s.email.BuildMail(n); task != nil {
			if err := s.queue.Enqueue(task); err != nil {
				errs = append(errs, fmt.Errorf("enqueue mail: %w", err))
			}
		}
	}

	if s.chatAdapter != nil && chatKinds[n.Kind] {
		if err := s.chatAdapter.SendText(ctx, s.chat.Webhook, buildChatMessage(n)); err != nil {
			errs = append(errs, fmt.Errorf("chat webhook: %w", err))
		}
	}

	if len(errs) == 0 {
		logger.Debug().Str("kind", string(n.Kind)).Str("entity", n.EntityID.String()).
			Int("recipients", len(n.Recipients)).Msg("[Notification] dispatched")
	}
	return errors.Join(errs...)
}
