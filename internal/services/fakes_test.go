package services

import (
	"context"
	"fmt"

	"rallybot/internal/models"
	"rallybot/internal/repositories"
)

// In-memory stand-ins for the external collaborators, shared by the
// service tests.

type fakeRepo struct {
	events map[int64]*models.Event
	puts   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: make(map[int64]*models.Event)}
}

func (f *fakeRepo) Get(ctx context.Context, meetupID int64) (*models.Event, error) {
	event, ok := f.events[meetupID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *event
	return &copied, nil
}

func (f *fakeRepo) GetBySnowflake(ctx context.Context, snowflakeID int64) (*models.Event, error) {
	for _, event := range f.events {
		if event.SnowflakeID == snowflakeID {
			copied := *event
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeRepo) Put(ctx context.Context, event *models.Event) error {
	copied := *event
	f.events[event.MeetupID] = &copied
	f.puts++
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, meetupID int64) error {
	delete(f.events, meetupID)
	return nil
}

type fakeRemote struct {
	events  map[int64]*models.ScheduledEvent
	nextID  int64
	creates int
	edits   int
	updates []*models.EventUpdate
	editErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{events: make(map[int64]*models.ScheduledEvent), nextID: 1000}
}

func (f *fakeRemote) CreateScheduledEvent(ctx context.Context, event *models.ScheduledEvent) (int64, error) {
	f.creates++
	f.nextID++
	copied := *event
	copied.SnowflakeID = f.nextID
	f.events[f.nextID] = &copied
	return f.nextID, nil
}

func (f *fakeRemote) ScheduledEvent(ctx context.Context, snowflakeID int64) (*models.ScheduledEvent, error) {
	event, ok := f.events[snowflakeID]
	if !ok {
		return nil, ErrRemoteNotFound
	}
	copied := *event
	return &copied, nil
}

func (f *fakeRemote) EditScheduledEvent(ctx context.Context, snowflakeID int64, update *models.EventUpdate) error {
	if f.editErr != nil {
		return f.editErr
	}
	event, ok := f.events[snowflakeID]
	if !ok {
		return ErrRemoteNotFound
	}
	f.edits++
	f.updates = append(f.updates, update)
	if update.Name != nil {
		event.Name = *update.Name
	}
	if update.Description != nil {
		event.Description = *update.Description
	}
	if update.StartTime != nil {
		event.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		event.EndTime = update.EndTime
	}
	if update.Location != nil {
		event.Location = *update.Location
	}
	return nil
}

func (f *fakeRemote) ListScheduledEvents(ctx context.Context) ([]*models.ScheduledEvent, error) {
	var events []*models.ScheduledEvent
	for _, event := range f.events {
		copied := *event
		events = append(events, &copied)
	}
	return events, nil
}

type sentRecord struct {
	channel string
	text    string
}

type fakeMessenger struct {
	sent []sentRecord
	err  error
}

func (f *fakeMessenger) SendMessage(ctx context.Context, channelName, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentRecord{channel: channelName, text: text})
	return nil
}

type fakeClassifier struct {
	calls  int
	result models.Category
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) models.Category {
	f.calls++
	if f.result == "" {
		return models.CategoryOther
	}
	return f.result
}

// staticSource returns a fixed event list, for driving SyncAll directly.
type staticSource struct {
	events []*models.Event
	err    error
}

func (s *staticSource) FetchEvents(ctx context.Context) ([]*models.Event, error) {
	if s.err != nil {
		return nil, fmt.Errorf("fetch failed: %w", s.err)
	}
	return s.events, nil
}
