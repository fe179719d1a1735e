package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rallybot/internal/models"
)

func testNotifier(messenger Messenger, repo *fakeRepo, remote *fakeRemote) *Notifier {
	return NewNotifier(messenger, repo, remote, &fakeClassifier{},
		"<@&inperson>", "<@&online>", false, time.UTC)
}

func testEvent() *models.Event {
	return &models.Event{
		MeetupID:    305964611,
		Title:       "Karaoke Night",
		Description: "Sing your heart out.",
		Link:        "https://www.meetup.com/chicago-anime-hangouts/events/305964611/",
		StartTime:   time.Date(2026, 6, 5, 18, 30, 0, 0, time.UTC),
		Location:    "Sing Sing Lounge",
		Category:    models.CategoryKaraoke,
	}
}

// Feed item with no prior remote identifier: create the remote entity,
// record its id, and announce once to the mapped channel.
func TestReconciler_CreatesNewEvent(t *testing.T) {
	repo := newFakeRepo()
	remote := newFakeRemote()
	messenger := &fakeMessenger{}
	reconciler := NewReconciler(repo, remote, nil, testNotifier(messenger, repo, remote))
	event := testEvent()

	outcome := reconciler.SyncOne(context.Background(), event)

	assert.Equal(t, OutcomeCreated, outcome)
	assert.NotZero(t, event.SnowflakeID, "remote identifier should be assigned")

	stored, ok := repo.events[305964611]
	require.True(t, ok, "event should be persisted")
	assert.Equal(t, event.SnowflakeID, stored.SnowflakeID)

	created := remote.events[event.SnowflakeID]
	require.NotNil(t, created)
	assert.Equal(t, "Karaoke Night", created.Name)
	// No explicit end time: implicitly an hour long
	require.NotNil(t, created.EndTime)
	assert.True(t, created.EndTime.Equal(event.StartTime.Add(time.Hour)))

	require.Len(t, messenger.sent, 1)
	assert.Equal(t, "karaoke", messenger.sent[0].channel)
	assert.Contains(t, messenger.sent[0].text, "has been scheduled for")
	assert.Contains(t, messenger.sent[0].text, "<@&inperson>")
}

// Second pass with identical data: zero remote mutations, zero store
// writes, zero notifications.
func TestReconciler_SecondPassUnchanged(t *testing.T) {
	repo := newFakeRepo()
	remote := newFakeRemote()
	messenger := &fakeMessenger{}
	reconciler := NewReconciler(repo, remote, nil, testNotifier(messenger, repo, remote))
	event := testEvent()

	require.Equal(t, OutcomeCreated, reconciler.SyncOne(context.Background(), event))
	putsAfterCreate := repo.puts
	sentAfterCreate := len(messenger.sent)

	outcome := reconciler.SyncOne(context.Background(), event)

	assert.Equal(t, OutcomeUnchanged, outcome)
	assert.Equal(t, 0, remote.edits)
	assert.Equal(t, putsAfterCreate, repo.puts, "no store writes on an unchanged pass")
	assert.Len(t, messenger.sent, sentAfterCreate, "no notifications on an unchanged pass")
}

// Changed location only: the update payload carries exactly that field.
func TestReconciler_LocationOnlyDiff(t *testing.T) {
	repo := newFakeRepo()
	remote := newFakeRemote()
	messenger := &fakeMessenger{}
	reconciler := NewReconciler(repo, remote, nil, testNotifier(messenger, repo, remote))
	event := testEvent()
	require.Equal(t, OutcomeCreated, reconciler.SyncOne(context.Background(), event))
	messenger.sent = nil

	event.Location = "The Back Room"
	outcome := reconciler.SyncOne(context.Background(), event)

	assert.Equal(t, OutcomeUpdated, outcome)
	require.Len(t, remote.updates, 1)
	update := remote.updates[0]
	assert.Equal(t, []string{"location"}, update.Fields(), "untouched fields must not appear in the payload")
	require.NotNil(t, update.Location)
	assert.Equal(t, "The Back Room", *update.Location)

	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0].text, "has been updated")
}

// End time before start time in fresh data: clamp, never accept silently.
func TestReconciler_EndBeforeStartClamp(t *testing.T) {
	repo := newFakeRepo()
	remote := newFakeRemote()
	messenger := &fakeMessenger{}
	reconciler := NewReconciler(repo, remote, nil, testNotifier(messenger, repo, remote))
	event := testEvent()
	require.Equal(t, OutcomeCreated, reconciler.SyncOne(context.Background(), event))

	badEnd := event.StartTime.Add(-2 * time.Hour)
	event.EndTime = &badEnd
	outcome := reconciler.SyncOne(context.Background(), event)

	assert.Equal(t, OutcomeUpdated, outcome)
	require.Len(t, remote.updates, 1)
	update := remote.updates[0]
	assert.Nil(t, update.EndTime, "inconsistent end time must be discarded")
	require.NotNil(t, update.StartTime)
	assert.True(t, update.StartTime.Equal(event.StartTime), "start time is forced to the event's start")
}

// Remote entity deleted out-of-band: recreate with a fresh identifier
// instead of erroring.
func TestReconciler_RecreatesDeletedRemote(t *testing.T) {
	repo := newFakeRepo()
	remote := newFakeRemote()
	messenger := &fakeMessenger{}
	reconciler := NewReconciler(repo, remote, nil, testNotifier(messenger, repo, remote))
	event := testEvent()
	require.Equal(t, OutcomeCreated, reconciler.SyncOne(context.Background(), event))
	oldID := event.SnowflakeID

	delete(remote.events, oldID)
	outcome := reconciler.SyncOne(context.Background(), event)

	assert.Equal(t, OutcomeCreated, outcome)
	assert.NotEqual(t, oldID, event.SnowflakeID, "a new remote identifier is assigned")
	assert.Equal(t, 2, remote.creates)
	assert.Equal(t, event.SnowflakeID, repo.events[event.MeetupID].SnowflakeID)
}

// A failing edit contains the damage to that event and that pass.
func TestReconciler_EditFailureIsContained(t *testing.T) {
	repo := newFakeRepo()
	remote := newFakeRemote()
	messenger := &fakeMessenger{}
	reconciler := NewReconciler(repo, remote, nil, testNotifier(messenger, repo, remote))
	event := testEvent()
	require.Equal(t, OutcomeCreated, reconciler.SyncOne(context.Background(), event))
	putsAfterCreate := repo.puts
	messenger.sent = nil

	remote.editErr = assert.AnError
	event.Title = "Karaoke Night (rescheduled)"
	outcome := reconciler.SyncOne(context.Background(), event)

	assert.Equal(t, OutcomeError, outcome)
	assert.Equal(t, putsAfterCreate, repo.puts, "failed update must not persist")
	assert.Empty(t, messenger.sent, "failed update must not notify")
}

// Two identical full passes: the second one is entirely a no-op.
func TestReconciler_SyncAllIdempotent(t *testing.T) {
	repo := newFakeRepo()
	remote := newFakeRemote()
	messenger := &fakeMessenger{}
	first := testEvent()
	second := &models.Event{
		MeetupID:  412000001,
		Title:     "Manga Book Club",
		StartTime: time.Date(2026, 7, 1, 19, 0, 0, 0, time.UTC),
		Location:  models.OnlineLocation,
		Online:    true,
		Category:  models.CategoryBookClub,
	}
	source := &staticSource{events: []*models.Event{first, second}}
	reconciler := NewReconciler(repo, remote, source, testNotifier(messenger, repo, remote))

	require.NoError(t, reconciler.SyncAll(context.Background()))
	assert.Equal(t, 2, remote.creates)
	require.Len(t, messenger.sent, 2)
	assert.Contains(t, messenger.sent[1].text, "<@&online>", "role mention follows the online flag")

	editsAfterFirst := remote.edits
	sentAfterFirst := len(messenger.sent)

	require.NoError(t, reconciler.SyncAll(context.Background()))

	assert.Equal(t, 2, remote.creates, "no duplicate creates on the second pass")
	assert.Equal(t, editsAfterFirst, remote.edits, "no remote mutations on the second pass")
	assert.Len(t, messenger.sent, sentAfterFirst, "no notifications on the second pass")
}
