package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
)

// NotificationKind names a workflow event users are told about
type NotificationKind string

const (
	NotifyApplicationCreated    NotificationKind = "APPLICATION_CREATED"
	NotifyApplicationAccepted   NotificationKind = "APPLICATION_ACCEPTED"
	NotifyApplicationRejected   NotificationKind = "APPLICATION_REJECTED"
	NotifyApplicationReminder   NotificationKind = "APPLICATION_REMINDER"
	NotifyThesisCreated         NotificationKind = "THESIS_CREATED"
	NotifyThesisClosed          NotificationKind = "THESIS_CLOSED"
	NotifyThesisSubmitted       NotificationKind = "THESIS_SUBMITTED"
	NotifyThesisFinished        NotificationKind = "THESIS_FINISHED"
	NotifyProposalUploaded      NotificationKind = "PROPOSAL_UPLOADED"
	NotifyProposalAccepted      NotificationKind = "PROPOSAL_ACCEPTED"
	NotifyChangesRequested      NotificationKind = "CHANGES_REQUESTED"
	NotifyAssessmentAdded       NotificationKind = "ASSESSMENT_ADDED"
	NotifyFinalGradeAvailable   NotificationKind = "FINAL_GRADE_AVAILABLE"
	NotifyCommentPosted         NotificationKind = "COMMENT_POSTED"
	NotifyPresentationScheduled NotificationKind = "PRESENTATION_SCHEDULED"
	NotifyPresentationUpdated   NotificationKind = "PRESENTATION_UPDATED"
	NotifyPresentationDeleted   NotificationKind = "PRESENTATION_DELETED"
)

// Recipient is a notified person
type Recipient struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}

// Notification is the payload handed to a Notifier after a workflow transaction commits
type Notification struct {
	Kind            NotificationKind `json:"kind"`
	ActorID         *uuid.UUID       `json:"actor_id,omitempty"`
	ResearchGroupID uuid.UUID        `json:"research_group_id"`
	EntityType      string           `json:"entity_type"` // application, topic, thesis
	EntityID        uuid.UUID        `json:"entity_id"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Recipients      []Recipient      `json:"recipients"`
	OccurredAt      time.Time        `json:"occurred_at"`
}

// Notifier delivers workflow notifications
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// NoopNotifier drops every notification
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, n *Notification) error { return nil }

func recipientOf(u *models.User) Recipient {
	return Recipient{UserID: u.ID, Name: u.FullName(), Email: u.Email}
}

func recipientsOf(users []models.User, exclude *models.User) []Recipient {
	out := make([]Recipient, 0, len(users))
	seen := make(map[uuid.UUID]bool, len(users))
	for i := range users {
		u := &users[i]
		if seen[u.ID] || (exclude != nil && exclude.ID == u.ID) {
			continue
		}
		seen[u.ID] = true
		out = append(out, recipientOf(u))
	}
	return out
}

func applicationTitle(app *models.Application) string {
	if app.Topic != nil && app.Topic.Title != "" {
		return app.Topic.Title
	}
	return app.ThesisTitle
}

func applicationNotification(kind NotificationKind, app *models.Application, actor *models.User, recipients []Recipient, now time.Time) *Notification {
	var message string
	switch kind {
	case NotifyApplicationCreated:
		message = "A new application was submitted"
	case NotifyApplicationAccepted:
		message = "Your application was accepted"
	case NotifyApplicationRejected:
		reason := ""
		if app.RejectReason != nil {
			reason = *app.RejectReason
		}
		message = fmt.Sprintf("Your application was rejected (%s)", reason)
	default:
		message = string(kind)
	}
	return &Notification{
		Kind:            kind,
		ActorID:         actorIDPtr(actor),
		ResearchGroupID: app.ResearchGroupID,
		EntityType:      "application",
		EntityID:        app.ID,
		Title:           applicationTitle(app),
		Message:         message,
		Recipients:      recipients,
		OccurredAt:      now,
	}
}

// thesisRecipients returns the users bound to thesis in any of roles except the actor.
// Roles.User must be loaded.
func thesisRecipients(thesis *models.Thesis, actor *models.User, roles ...string) []Recipient {
	var users []models.User
	for _, r := range thesis.Roles {
		if r.User == nil || (len(roles) > 0 && !contains(roles, r.Role)) {
			continue
		}
		users = append(users, *r.User)
	}
	return recipientsOf(users, actor)
}

func thesisNotification(kind NotificationKind, thesis *models.Thesis, actor *models.User, message string, now time.Time, roles ...string) *Notification {
	return &Notification{
		Kind:            kind,
		ActorID:         actorIDPtr(actor),
		ResearchGroupID: thesis.ResearchGroupID,
		EntityType:      "thesis",
		EntityID:        thesis.ID,
		Title:           thesis.Title,
		Message:         message,
		Recipients:      thesisRecipients(thesis, actor, roles...),
		OccurredAt:      now,
	}
}
