package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/ls1intum/thesis-management-sub000/internal/storage"
	"github.com/ls1intum/thesis-management-sub000/pkg/logger"
	"github.com/ls1intum/thesis-management-sub000/pkg/response"
	"gorm.io/gorm"
)

// WorkflowDeps are the collaborators the workflow services call after commit
type WorkflowDeps struct {
	Notifier Notifier
	Identity IdentitySynchronizer
	Calendar CalendarClient
	Store    storage.Store
	// MaxUploadBytes caps proposal, thesis file and comment attachment uploads
	MaxUploadBytes int64
	Now            func() time.Time
}

func (d *WorkflowDeps) withDefaults() *WorkflowDeps {
	out := *d
	if out.Notifier == nil {
		out.Notifier = NoopNotifier{}
	}
	if out.Identity == nil {
		out.Identity = NoopIdentitySynchronizer{}
	}
	if out.Calendar == nil {
		out.Calendar = NoopCalendarClient{}
	}
	if out.MaxUploadBytes <= 0 {
		out.MaxUploadBytes = 25 << 20
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}

type sideEffect struct {
	name string
	fn   func(ctx context.Context) error
}

// sideEffects collects collaborator calls during a transaction; they run only after commit.
// undo hooks run instead when the transaction fails.
type sideEffects struct {
	items []sideEffect
	undo  []sideEffect
}

func (e *sideEffects) onRollback(name string, fn func(ctx context.Context) error) {
	e.undo = append(e.undo, sideEffect{name: name, fn: fn})
}

func (e *sideEffects) rollback(ctx context.Context) {
	for _, item := range e.undo {
		if err := item.fn(ctx); err != nil {
			logger.Warn().Err(err).Str("effect", item.name).Msg("rollback cleanup failed")
		}
	}
	e.undo = nil
	e.items = nil
}

func (e *sideEffects) add(name string, fn func(ctx context.Context) error) {
	e.items = append(e.items, sideEffect{name: name, fn: fn})
}

func (e *sideEffects) notify(n Notifier, notification *Notification) {
	e.add("notify "+string(notification.Kind), func(ctx context.Context) error {
		return n.Notify(ctx, notification)
	})
}

// run executes every collected call; failures are logged and never returned
func (e *sideEffects) run(ctx context.Context) {
	for _, item := range e.items {
		if err := item.fn(ctx); err != nil {
			logger.Warn().Err(err).Str("effect", item.name).Msg("side effect failed")
		}
	}
	e.items = nil
}

func actorID(actor *models.User) uuid.UUID {
	if actor == nil {
		return uuid.Nil
	}
	return actor.ID
}

func actorIDPtr(actor *models.User) *uuid.UUID {
	if actor == nil {
		return nil
	}
	id := actor.ID
	return &id
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFound(what + " not found")
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func invalid(msg string) error {
	return response.NewBadRequest(msg)
}

func conflict(msg string) error {
	return response.NewConflict(msg)
}

func forbidden(msg string) error {
	return response.NewForbidden(msg)
}

func requireActor(actor *models.User) error {
	if actor == nil {
		return forbidden("authentication required")
	}
	return nil
}

func checkLength(field, value string, max int) error {
	if len([]rune(value)) > max {
		return invalid(fmt.Sprintf("%s exceeds the maximum length of %d characters", field, max))
	}
	return nil
}

// uploadError converts storage validation failures into invalid-parameters errors
func uploadError(err error) error {
	switch {
	case errors.Is(err, storage.ErrEmpty), errors.Is(err, storage.ErrTooLarge), errors.Is(err, storage.ErrKindNotAllowed):
		return invalid(err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return response.NewNotFound("file not found")
	}
	return fmt.Errorf("failed to store file: %w", err)
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
