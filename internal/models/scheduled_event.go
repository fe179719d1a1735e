package models

import "time"

// ScheduledEvent is the scheduling service's view of an event. It is a
// projection kept in sync with the canonical Event, never authoritative,
// except when bootstrapping a record for an event created directly on the
// platform.
type ScheduledEvent struct {
	SnowflakeID int64
	Name        string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
	Location    string
}

// EventUpdate is a partial patch against a ScheduledEvent. Nil fields are
// left untouched; the reconciler only fills in fields that actually
// differ.
type EventUpdate struct {
	Name        *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Location    *string
}

// Empty reports whether the update carries no changes.
func (u *EventUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.StartTime == nil &&
		u.EndTime == nil && u.Location == nil
}

// Fields lists the names of the fields present in the update, for logging.
func (u *EventUpdate) Fields() []string {
	var fields []string
	if u.Name != nil {
		fields = append(fields, "name")
	}
	if u.Description != nil {
		fields = append(fields, "description")
	}
	if u.StartTime != nil {
		fields = append(fields, "start_time")
	}
	if u.EndTime != nil {
		fields = append(fields, "end_time")
	}
	if u.Location != nil {
		fields = append(fields, "location")
	}
	return fields
}
