package services

import (
	"context"
	"errors"

	"rallybot/internal/models"
)

// ErrRemoteNotFound is returned by ScheduledEventClient when the remote
// entity no longer exists (deleted out-of-band). It drives the recreate
// path and is never fatal.
var ErrRemoteNotFound = errors.New("scheduled event not found")

// ScheduledEventClient is the scheduling-service surface the engine needs.
type ScheduledEventClient interface {
	CreateScheduledEvent(ctx context.Context, event *models.ScheduledEvent) (int64, error)
	ScheduledEvent(ctx context.Context, snowflakeID int64) (*models.ScheduledEvent, error)
	EditScheduledEvent(ctx context.Context, snowflakeID int64, update *models.EventUpdate) error
	ListScheduledEvents(ctx context.Context) ([]*models.ScheduledEvent, error)
}

// Messenger delivers announcement text to a named channel.
type Messenger interface {
	SendMessage(ctx context.Context, channelName, text string) error
}

// CategoryClassifier maps free-text descriptions to a category.
type CategoryClassifier interface {
	Classify(ctx context.Context, text string) models.Category
}

// EventSource produces canonical events, one per upstream feed item.
type EventSource interface {
	FetchEvents(ctx context.Context) ([]*models.Event, error)
}
