package domain

import (
	"context"
	"time"
)

// EventType is the category tag of an event.
type EventType string

const (
	EventTypeWork     EventType = "work"
	EventTypePersonal EventType = "personal"
	EventTypeSocial   EventType = "social"
	EventTypeProject  EventType = "project"
)

// Valid reports whether t is one of the known event categories.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeWork, EventTypePersonal, EventTypeSocial, EventTypeProject:
		return true
	}
	return false
}

// DateLayout is the wire and storage format of an event's start date.
const DateLayout = "2006-01-02"

// MinutesPerDay bounds StartMinute and EndMinute.
const MinutesPerDay = 24 * 60

// Event is a calendar entry owned by its creator.
type Event struct {
	ID           int64
	Title        string
	StartDate    time.Time
	Time         string
	Duration     string
	Type         EventType
	StartMinute  int
	EndMinute    int
	Description  string
	Location     *Location
	CreatorID    int64
	Creator      *User
	Participants []User
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ParticipantIDs returns the ids of the loaded participants.
func (e *Event) ParticipantIDs() []int64 {
	ids := make([]int64, len(e.Participants))
	for i, p := range e.Participants {
		ids[i] = p.ID
	}
	return ids
}

// EventFilter narrows an event listing.
type EventFilter struct {
	Date   *time.Time
	Offset int
	Limit  int
}

// EventRepository defines persistence operations for events.
//
// Create and Update write the participant rows in the same transaction as
// the event row. Ids that do not match an existing user are skipped.
// Update leaves participants untouched when participantIDs is nil.
type EventRepository interface {
	Create(ctx context.Context, event *Event, participantIDs []int64) error
	GetByID(ctx context.Context, id int64) (*Event, error)
	ListByCreator(ctx context.Context, creatorID int64, filter EventFilter) ([]Event, error)
	Update(ctx context.Context, event *Event, participantIDs []int64) error
	Delete(ctx context.Context, id int64) error
}
