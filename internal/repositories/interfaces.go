package repositories

import (
	"context"

	"rallybot/internal/models"
)

type EventRepository interface {
	Get(ctx context.Context, meetupID int64) (*models.Event, error)
	GetBySnowflake(ctx context.Context, snowflakeID int64) (*models.Event, error)
	Put(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, meetupID int64) error
}
