package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ls1intum/thesis-management-sub000/internal/config"
	"github.com/ls1intum/thesis-management-sub000/internal/models"
	"github.com/segmentio/kafka-go"
)

// CalendarEvent describes a scheduled presentation in the group calendar
type CalendarEvent struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	StreamURL   string      `json:"stream_url,omitempty"`
	StartsAt    time.Time   `json:"starts_at"`
	EndsAt      time.Time   `json:"ends_at"`
	Attendees   []Recipient `json:"attendees"`
}

// CalendarClient manages calendar entries for scheduled presentations
type CalendarClient interface {
	CreateEvent(ctx context.Context, event CalendarEvent) (string, error)
	UpdateEvent(ctx context.Context, eventID string, event CalendarEvent) error
	DeleteEvent(ctx context.Context, eventID string) error
}

func NewCalendarClient(cfg *config.KafkaConfig) CalendarClient {
	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 || cfg.CalendarTopic == "" {
		return NoopCalendarClient{}
	}
	return NewKafkaCalendarClient(cfg.Brokers, cfg.CalendarTopic)
}

// NoopCalendarClient keeps no calendar; CreateEvent returns an empty id
type NoopCalendarClient struct{}

func (NoopCalendarClient) CreateEvent(ctx context.Context, event CalendarEvent) (string, error) {
	return "", nil
}
func (NoopCalendarClient) UpdateEvent(ctx context.Context, eventID string, event CalendarEvent) error {
	return nil
}
func (NoopCalendarClient) DeleteEvent(ctx context.Context, eventID string) error { return nil }

type calendarCommand struct {
	Action  string         `json:"action"` // create, update, delete
	EventID string         `json:"event_id"`
	Event   *CalendarEvent `json:"event,omitempty"`
}

// KafkaCalendarClient emits calendar commands consumed by the calendar bridge.
// Event ids are assigned here so later updates and deletes can reference them.
type KafkaCalendarClient struct {
	writer *kafka.Writer
}

func NewKafkaCalendarClient(brokers []string, topic string) *KafkaCalendarClient {
	return &KafkaCalendarClient{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (c *KafkaCalendarClient) CreateEvent(ctx context.Context, event CalendarEvent) (string, error) {
	id := uuid.NewString()
	if err := c.send(ctx, calendarCommand{Action: "create", EventID: id, Event: &event}); err != nil {
		return "", err
	}
	return id, nil
}

func (c *KafkaCalendarClient) UpdateEvent(ctx context.Context, eventID string, event CalendarEvent) error {
	return c.send(ctx, calendarCommand{Action: "update", EventID: eventID, Event: &event})
}

func (c *KafkaCalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.send(ctx, calendarCommand{Action: "delete", EventID: eventID})
}

func (c *KafkaCalendarClient) send(ctx context.Context, cmd calendarCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal calendar command: %w", err)
	}
	err = c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(cmd.EventID),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to send calendar %s: %w", cmd.Action, err)
	}
	return nil
}

func (c *KafkaCalendarClient) Close() error {
	return c.writer.Close()
}

const presentationDuration = time.Hour

func presentationCalendarEvent(thesis *models.Thesis, p *models.ThesisPresentation) CalendarEvent {
	kind := "Final"
	if p.Type == models.PresentationTypeIntermediate {
		kind = "Intermediate"
	}
	return CalendarEvent{
		Title:       fmt.Sprintf("%s Presentation: %s", kind, thesis.Title),
		Description: thesis.Abstract,
		Location:    p.Location,
		StreamURL:   p.StreamURL,
		StartsAt:    p.ScheduledAt,
		EndsAt:      p.ScheduledAt.Add(presentationDuration),
		Attendees:   thesisRecipients(thesis, nil),
	}
}
