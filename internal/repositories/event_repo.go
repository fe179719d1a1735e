package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"rallybot/internal/models"
)

var ErrNotFound = errors.New("not found")

const (
	eventKeyPrefix    = models.KindEvent + ":"
	snowflakeIndexKey = models.KindEvent + ":by-snowflake:"
)

type RedisEventRepository struct {
	client *redis.Client
}

func NewRedisEventRepository(client *redis.Client) *RedisEventRepository {
	return &RedisEventRepository{client: client}
}

func (r *RedisEventRepository) Get(ctx context.Context, meetupID int64) (*models.Event, error) {
	data, err := r.client.Get(ctx, eventKey(meetupID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", meetupID, err)
	}

	event, err := decodeEvent([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode event %d: %w", meetupID, err)
	}
	return event, nil
}

// GetBySnowflake resolves a scheduling-service identifier back to its
// event through the secondary index maintained by Put.
func (r *RedisEventRepository) GetBySnowflake(ctx context.Context, snowflakeID int64) (*models.Event, error) {
	idStr, err := r.client.Get(ctx, snowflakeKey(snowflakeID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve snowflake %d: %w", snowflakeID, err)
	}

	meetupID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt snowflake index for %d: %w", snowflakeID, err)
	}
	return r.Get(ctx, meetupID)
}

func (r *RedisEventRepository) Put(ctx context.Context, event *models.Event) error {
	data, err := encodeEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %d: %w", event.MeetupID, err)
	}

	prev, err := r.Get(ctx, event.MeetupID)
	if err != nil && err != ErrNotFound {
		return err
	}

	// Records never expire; feed removal is not a cancellation.
	err = r.client.Set(ctx, eventKey(event.MeetupID), data, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to put event %d: %w", event.MeetupID, err)
	}

	// A recreate assigns a fresh snowflake; drop the index entry for the
	// old one so it cannot resolve to this record anymore.
	if prev != nil && prev.SnowflakeID != 0 && prev.SnowflakeID != event.SnowflakeID {
		if err := r.client.Del(ctx, snowflakeKey(prev.SnowflakeID)).Err(); err != nil {
			return fmt.Errorf("failed to drop stale snowflake index %d: %w", prev.SnowflakeID, err)
		}
	}

	// Keep the snowflake index current so the reminder sweep can map
	// scheduling-service entities back to records.
	if event.SnowflakeID != 0 {
		err = r.client.Set(ctx, snowflakeKey(event.SnowflakeID),
			strconv.FormatInt(event.MeetupID, 10), 0).Err()
		if err != nil {
			return fmt.Errorf("failed to index snowflake %d: %w", event.SnowflakeID, err)
		}
	}
	return nil
}

func (r *RedisEventRepository) Delete(ctx context.Context, meetupID int64) error {
	event, err := r.Get(ctx, meetupID)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if event.SnowflakeID != 0 {
		if err := r.client.Del(ctx, snowflakeKey(event.SnowflakeID)).Err(); err != nil {
			return fmt.Errorf("failed to drop snowflake index %d: %w", event.SnowflakeID, err)
		}
	}
	if err := r.client.Del(ctx, eventKey(meetupID)).Err(); err != nil {
		return fmt.Errorf("failed to delete event %d: %w", meetupID, err)
	}
	return nil
}

// Helpers: build Redis keys for events and the snowflake index
func eventKey(meetupID int64) string {
	return eventKeyPrefix + strconv.FormatInt(meetupID, 10)
}

func snowflakeKey(snowflakeID int64) string {
	return snowflakeIndexKey + strconv.FormatInt(snowflakeID, 10)
}
