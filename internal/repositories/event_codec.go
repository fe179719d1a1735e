package repositories

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"rallybot/internal/models"
)

// storedEvent is the wire form of an event record. Timestamps are RFC 3339
// strings carrying their offset. start_ms is a legacy encoding (integer
// epoch milliseconds) that older records used instead of start_time; it is
// accepted on decode only and rewritten canonical on the next Put.
type storedEvent struct {
	MeetupID    json.Number `json:"meetup_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Link        string      `json:"link"`
	StartTime   string      `json:"start_time,omitempty"`
	StartMs     json.Number `json:"start_ms,omitempty"`
	EndTime     string      `json:"end_time,omitempty"`
	Location    string      `json:"location"`
	Category    string      `json:"category,omitempty"`
	Online      bool        `json:"online"`
	SnowflakeID json.Number `json:"snowflake_id"`
}

func encodeEvent(event *models.Event) ([]byte, error) {
	stored := storedEvent{
		MeetupID:    json.Number(fmt.Sprintf("%d", event.MeetupID)),
		Title:       event.Title,
		Description: event.Description,
		Link:        event.Link,
		StartTime:   event.StartTime.Format(time.RFC3339Nano),
		Location:    event.Location,
		Category:    string(event.Category),
		Online:      event.Online,
		SnowflakeID: json.Number(fmt.Sprintf("%d", event.SnowflakeID)),
	}
	if event.EndTime != nil {
		stored.EndTime = event.EndTime.Format(time.RFC3339Nano)
	}
	return json.Marshal(stored)
}

func decodeEvent(data []byte) (*models.Event, error) {
	var stored storedEvent
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&stored); err != nil {
		return nil, err
	}

	meetupID, err := exactInt(stored.MeetupID)
	if err != nil {
		return nil, fmt.Errorf("bad meetup_id %q: %w", stored.MeetupID, err)
	}

	event := &models.Event{
		MeetupID:    meetupID,
		Title:       stored.Title,
		Description: stored.Description,
		Link:        stored.Link,
		Location:    stored.Location,
		Category:    models.Category(stored.Category),
		Online:      stored.Online,
	}

	if stored.SnowflakeID != "" {
		event.SnowflakeID, err = exactInt(stored.SnowflakeID)
		if err != nil {
			return nil, fmt.Errorf("bad snowflake_id %q: %w", stored.SnowflakeID, err)
		}
	}

	event.StartTime, err = decodeStart(stored)
	if err != nil {
		return nil, err
	}

	if stored.EndTime != "" {
		end, err := time.Parse(time.RFC3339Nano, stored.EndTime)
		if err != nil {
			return nil, fmt.Errorf("bad end_time %q: %w", stored.EndTime, err)
		}
		event.EndTime = &end
	}

	return event, nil
}

// decodeStart prefers the canonical RFC 3339 field and falls back to the
// legacy epoch-millis field, upgrading it transparently.
func decodeStart(stored storedEvent) (time.Time, error) {
	if stored.StartTime != "" {
		start, err := time.Parse(time.RFC3339Nano, stored.StartTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad start_time %q: %w", stored.StartTime, err)
		}
		return start, nil
	}
	if stored.StartMs != "" {
		ms, err := exactInt(stored.StartMs)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad start_ms %q: %w", stored.StartMs, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, errors.New("record has neither start_time nor start_ms")
}

// exactInt reads a JSON number as an integer, tolerating records written
// by encoders that emitted whole numbers in floating-point form.
func exactInt(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	// float64(math.MaxInt64) rounds to 2^63, so >= catches the overflow
	// edge exactly; conversion of an out-of-range float is undefined.
	if f >= float64(math.MaxInt64) || f < float64(math.MinInt64) {
		return 0, fmt.Errorf("number %v overflows int64", f)
	}
	i := int64(f)
	if float64(i) != f {
		return 0, fmt.Errorf("number %v is not an integer", f)
	}
	return i, nil
}
