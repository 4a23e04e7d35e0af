// Package audit emits structured moderation events to a log channel.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/venlyx/sentinel/internal/moderation/platform"
	"github.com/venlyx/sentinel/pkg/utils"
)

// Embed colors for audit events.
const (
	ColorGreen  = 0x00ff00
	ColorRed    = 0xff0000
	ColorOrange = 0xff9900
	ColorBlue   = 0x0099ff
)

// Event is one audit record.
type Event struct {
	ID          uuid.UUID
	Title       string
	Description string
	Color       int
	Fields      []platform.Field
	Timestamp   time.Time
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(title, description string, color int, fields ...platform.Field) Event {
	return Event{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
		Timestamp:   time.Now(),
	}
}

// Sink receives audit events.
type Sink interface {
	// Emit records the event. Implementations must not block the
	// caller on delivery failures beyond their retry budget.
	Emit(ctx context.Context, event Event)
}

// ChannelSink posts audit events to a configured channel, retrying
// transient failures. Delivery failures are logged, never surfaced.
type ChannelSink struct {
	messenger platform.Messenger
	channelID snowflake.ID
	logger    *zap.Logger
}

// NewChannelSink creates a sink posting to the given channel.
func NewChannelSink(messenger platform.Messenger, channelID snowflake.ID, logger *zap.Logger) *ChannelSink {
	return &ChannelSink{
		messenger: messenger,
		channelID: channelID,
		logger:    logger.Named("audit"),
	}
}

// Emit posts the event to the log channel.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	msg := platform.Message{
		Title:       event.Title,
		Description: event.Description,
		Color:       event.Color,
		Fields:      event.Fields,
		Footer:      fmt.Sprintf("Event %s", event.ID),
	}

	err := utils.WithRetry(ctx, func() error {
		return s.messenger.SendToChannel(ctx, s.channelID, msg, 0)
	}, utils.GetAuditRetryOptions())
	if err != nil {
		s.logger.Error("Failed to deliver audit event",
			zap.String("eventID", event.ID.String()),
			zap.String("title", event.Title),
			zap.Error(err))
	}
}

// NopSink discards events. Used when no log channel is configured.
type NopSink struct{}

// Emit drops the event.
func (NopSink) Emit(context.Context, Event) {}
