package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"rallybot/internal/models"
	"rallybot/internal/repositories"
)

// recentHistorySize bounds the sent-message history used for dedup.
const recentHistorySize = 5

type sentMessage struct {
	channel string
	text    string
}

// Notifier decides where announcements go and suppresses repeats. It also
// runs the periodic reminder sweep over the scheduling service's event
// list. The recent-message history and its lock are process-wide state.
type Notifier struct {
	messenger  Messenger
	repo       repositories.EventRepository
	remote     ScheduledEventClient
	classifier CategoryClassifier

	inPersonMention string
	onlineMention   string
	muted           bool
	tz              *time.Location

	// now is replaceable in tests.
	now func() time.Time

	mu     sync.Mutex
	recent []sentMessage
}

func NewNotifier(
	messenger Messenger,
	repo repositories.EventRepository,
	remote ScheduledEventClient,
	classifier CategoryClassifier,
	inPersonMention, onlineMention string,
	muted bool,
	tz *time.Location,
) *Notifier {
	return &Notifier{
		messenger:       messenger,
		repo:            repo,
		remote:          remote,
		classifier:      classifier,
		inPersonMention: inPersonMention,
		onlineMention:   onlineMention,
		muted:           muted,
		tz:              tz,
		now:             time.Now,
	}
}

func (n *Notifier) mention(online bool) string {
	if online {
		return n.onlineMention
	}
	return n.inPersonMention
}

// NotifyNew announces a freshly scheduled event to its category channel.
func (n *Notifier) NotifyNew(ctx context.Context, event *models.Event) {
	text := fmt.Sprintf("%s %s has been scheduled for <t:%d>.",
		n.mention(event.Online), event.Title, event.StartTime.Unix())
	n.send(ctx, event.Category.Channel(), text)
}

// NotifyUpdated announces a changed event to its category channel.
func (n *Notifier) NotifyUpdated(ctx context.Context, event *models.Event) {
	text := fmt.Sprintf("%s %s has been updated.", n.mention(event.Online), event.Title)
	n.send(ctx, event.Category.Channel(), text)
}

// Remind sweeps the scheduling service's current event list. Events the
// store doesn't know yet are bootstrapped from the remote entity and
// announced as new; known events get a single reminder when their start
// falls inside the window for their kind.
func (n *Notifier) Remind(ctx context.Context) error {
	remotes, err := n.remote.ListScheduledEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scheduled events: %w", err)
	}

	now := n.now().In(n.tz)
	for _, remote := range remotes {
		event, err := n.repo.GetBySnowflake(ctx, remote.SnowflakeID)
		if err == repositories.ErrNotFound {
			event, err = n.bootstrap(ctx, remote)
			if err != nil {
				log.Printf("Error bootstrapping event for snowflake %d: %v", remote.SnowflakeID, err)
				continue
			}
			n.NotifyNew(ctx, event)
			continue
		}
		if err != nil {
			log.Printf("Error looking up snowflake %d: %v", remote.SnowflakeID, err)
			continue
		}

		channel := event.Category.Channel()
		start := remote.StartTime

		switch {
		// In-person events get a heads-up a day ahead.
		case !event.Online && start.After(now.Add(24*time.Hour)) && start.Before(now.Add(25*time.Hour)):
			text := fmt.Sprintf("%s %s is tomorrow! (<t:%d>)", n.inPersonMention, remote.Name, start.Unix())
			n.send(ctx, channel, text)
		// Online events get a shorter runway.
		case event.Online && start.After(now.Add(1*time.Hour)) && start.Before(now.Add(2*time.Hour)):
			text := fmt.Sprintf("%s %s starts soon! (<t:%d:t>)", n.onlineMention, remote.Name, start.Unix())
			n.send(ctx, channel, text)
		}
	}
	return nil
}

// bootstrap synthesizes and persists a record for an event that exists on
// the platform but not in the store, treating the remote entity as
// authoritative for this one case.
func (n *Notifier) bootstrap(ctx context.Context, remote *models.ScheduledEvent) (*models.Event, error) {
	log.Printf("snowflake %d (%s) not found in store, creating...", remote.SnowflakeID, remote.Name)

	event := models.NewEvent(remote.SnowflakeID)
	event.Title = remote.Name
	event.Description = remote.Description
	event.Category = n.classifier.Classify(ctx, remote.Description)
	event.StartTime = remote.StartTime
	event.EndTime = remote.EndTime
	event.Location = remote.Location
	event.Online = strings.EqualFold(remote.Location, models.OnlineLocation)
	event.SnowflakeID = remote.SnowflakeID

	if err := n.repo.Put(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// send delivers one message, deduplicated against the bounded history of
// recently sent (channel, text) pairs. With the mute switch on, messages
// are computed and logged but not delivered.
func (n *Notifier) send(ctx context.Context, channel, text string) {
	if !n.record(channel, text) {
		log.Printf("suppressing duplicate message -> %s: %s", channel, text)
		return
	}

	log.Printf("sending message -> %s: %s", channel, text)
	if n.muted {
		log.Printf("notifications muted, not delivering")
		return
	}

	if err := n.messenger.SendMessage(ctx, channel, text); err != nil {
		log.Printf("Error sending message to %s: %v", channel, err)
	}
}

// record returns false if the (channel, text) pair is already in the
// recent history; otherwise it appends it, evicting the oldest entry
// once the history is full.
func (n *Notifier) record(channel, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sent := range n.recent {
		if sent.channel == channel && sent.text == text {
			return false
		}
	}

	n.recent = append(n.recent, sentMessage{channel: channel, text: text})
	if len(n.recent) > recentHistorySize {
		n.recent = n.recent[1:]
	}
	return true
}
