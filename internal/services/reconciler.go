package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"rallybot/internal/models"
	"rallybot/internal/repositories"
)

// Outcome is the terminal state of reconciling a single event.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeError     Outcome = "error"
)

// Reconciler keeps the scheduling service and the record store in step
// with the feed. Each event is processed to completion, notification
// included, before the next begins.
type Reconciler struct {
	repo     repositories.EventRepository
	remote   ScheduledEventClient
	source   EventSource
	notifier *Notifier
}

func NewReconciler(repo repositories.EventRepository, remote ScheduledEventClient, source EventSource, notifier *Notifier) *Reconciler {
	return &Reconciler{
		repo:     repo,
		remote:   remote,
		source:   source,
		notifier: notifier,
	}
}

// SyncAll runs one full refresh pass: normalize the feed, then reconcile
// each event in feed order. Per-event failures are contained; only a
// feed-level failure aborts the pass.
func (r *Reconciler) SyncAll(ctx context.Context) error {
	runID := uuid.New().String()

	events, err := r.source.FetchEvents(ctx)
	if err != nil {
		return fmt.Errorf("sync %s: %w", runID, err)
	}

	counts := map[Outcome]int{}
	for _, event := range events {
		outcome := r.SyncOne(ctx, event)
		counts[outcome]++
		log.Printf("sync %s: event %d (%s) -> %s", runID, event.MeetupID, event.Title, outcome)
	}

	log.Printf("sync %s done: %d created, %d updated, %d unchanged, %d errors",
		runID, counts[OutcomeCreated], counts[OutcomeUpdated], counts[OutcomeUnchanged], counts[OutcomeError])
	return nil
}

// SyncOne reconciles a single canonical event against the scheduling
// service and the store.
func (r *Reconciler) SyncOne(ctx context.Context, event *models.Event) Outcome {
	if event.SnowflakeID == 0 {
		return r.create(ctx, event)
	}

	remote, err := r.remote.ScheduledEvent(ctx, event.SnowflakeID)
	if errors.Is(err, ErrRemoteNotFound) {
		// Deleted out-of-band on the platform; recreate rather than fail.
		log.Printf("snowflake %d for %q not found, this has likely been deleted, recreating...",
			event.SnowflakeID, event.Title)
		return r.create(ctx, event)
	}
	if err != nil {
		log.Printf("Error fetching scheduled event %d for %q: %v", event.SnowflakeID, event.Title, err)
		return OutcomeError
	}

	update := r.diff(event, remote)
	if update.Empty() {
		return OutcomeUnchanged
	}

	if err := r.remote.EditScheduledEvent(ctx, event.SnowflakeID, update); err != nil {
		log.Printf("Error updating scheduled event %d for %q (fields %v): %v",
			event.SnowflakeID, event.Title, update.Fields(), err)
		return OutcomeError
	}
	if err := r.repo.Put(ctx, event); err != nil {
		log.Printf("Error persisting event %d after update: %v", event.MeetupID, err)
		return OutcomeError
	}

	r.notifier.NotifyUpdated(ctx, event)
	return OutcomeUpdated
}

func (r *Reconciler) create(ctx context.Context, event *models.Event) Outcome {
	end := event.EndOrDefault()
	snowflakeID, err := r.remote.CreateScheduledEvent(ctx, &models.ScheduledEvent{
		Name:        event.Title,
		Description: event.Description,
		StartTime:   event.StartTime,
		EndTime:     &end,
		Location:    event.Location,
	})
	if err != nil {
		log.Printf("Error creating scheduled event for %q (%d): %v", event.Title, event.MeetupID, err)
		return OutcomeError
	}

	event.SnowflakeID = snowflakeID
	if err := r.repo.Put(ctx, event); err != nil {
		log.Printf("Error persisting event %d after create: %v", event.MeetupID, err)
		return OutcomeError
	}

	log.Printf("Created new event w/ snowflake id: %d", event.SnowflakeID)
	r.notifier.NotifyNew(ctx, event)
	return OutcomeCreated
}

// diff computes the minimal field-level update needed to bring the remote
// entity in line with the event. Fields that already match are never
// included. The end time is only compared when the event carries an
// explicit one.
func (r *Reconciler) diff(event *models.Event, remote *models.ScheduledEvent) *models.EventUpdate {
	update := &models.EventUpdate{}

	if remote.Name != event.Title {
		update.Name = &event.Title
	}
	if remote.Description != event.Description {
		update.Description = &event.Description
	}
	if !remote.StartTime.Equal(event.StartTime) {
		update.StartTime = &event.StartTime
	}
	if event.EndTime != nil && (remote.EndTime == nil || !remote.EndTime.Equal(*event.EndTime)) {
		update.EndTime = event.EndTime
	}
	if remote.Location != event.Location {
		update.Location = &event.Location
	}

	// Defensive clamp: a malformed detail payload can yield an end time
	// before the start. Never accept that silently; drop the end change
	// and pin the start instead.
	if update.EndTime != nil {
		newStart := remote.StartTime
		if update.StartTime != nil {
			newStart = *update.StartTime
		}
		if update.EndTime.Before(newStart) {
			log.Printf("Warning: end time %s before start time %s for event %d, forcing start time",
				update.EndTime.Format(time.RFC3339), newStart.Format(time.RFC3339), event.MeetupID)
			update.EndTime = nil
			update.StartTime = &event.StartTime
		}
	}

	return update
}
