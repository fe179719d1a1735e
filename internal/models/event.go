package models

import (
	"fmt"
	"time"
)

// KindEvent is the record kind under which events are stored.
const KindEvent = "event"

// MaxDescriptionLen is the longest description we mirror to the
// scheduling service; anything longer is elided with a link back
// to the full event page.
const MaxDescriptionLen = 999

// OnlineLocation is the sentinel location for remote events.
const OnlineLocation = "Online"

// Event is the canonical record for a single Meetup event. Identity is
// (KindEvent, MeetupID); everything else is overwritten from the feed on
// every pass, except Category which is classified once and kept.
type Event struct {
	MeetupID    int64      `json:"meetup_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Location    string     `json:"location"`
	Category    Category   `json:"category,omitempty"`
	Online      bool       `json:"online"`
	SnowflakeID int64      `json:"snowflake_id"`
}

func NewEvent(meetupID int64) *Event {
	return &Event{MeetupID: meetupID}
}

// EndOrDefault returns the explicit end time if set, otherwise one hour
// after the start.
func (e *Event) EndOrDefault() time.Time {
	if e.EndTime != nil {
		return *e.EndTime
	}
	return e.StartTime.Add(time.Hour)
}

// TruncateDescription enforces the description length cap. Descriptions
// longer than MaxDescriptionLen are cut so that, with the elision marker
// and link appended, the result is at most MaxDescriptionLen runes.
func TruncateDescription(description, link string) string {
	runes := []rune(description)
	if len(runes) <= MaxDescriptionLen {
		return description
	}
	suffix := fmt.Sprintf("... [full event](%s)", link)
	keep := MaxDescriptionLen - len([]rune(suffix))
	if keep < 0 {
		keep = 0
	}
	out := []rune(string(runes[:keep]) + suffix)
	// A pathological link can make the suffix alone exceed the cap; the
	// cap wins over a complete link.
	if len(out) > MaxDescriptionLen {
		out = out[:MaxDescriptionLen]
	}
	return string(out)
}
