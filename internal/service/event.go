package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/calendar-api/internal/domain"
)

// EventInput carries the fields of a new event.
type EventInput struct {
	Title        string
	StartDate    time.Time
	Time         string
	Duration     string
	Type         domain.EventType
	StartMinute  int
	EndMinute    int
	Description  string
	Location     *domain.Location
	Participants []int64
}

// EventPatch is a partial update. Nil fields are left unchanged.
// A non-nil Participants replaces the whole list; ClearLocation removes
// the location.
type EventPatch struct {
	Title         *string
	StartDate     *time.Time
	Time          *string
	Duration      *string
	Type          *domain.EventType
	StartMinute   *int
	EndMinute     *int
	Description   *string
	Location      *domain.Location
	ClearLocation bool
	Participants  *[]int64
}

// EventService manages events and enforces that only the creator mutates them.
type EventService struct {
	events domain.EventRepository
}

// NewEventService creates a new EventService.
func NewEventService(events domain.EventRepository) *EventService {
	return &EventService{events: events}
}

// Create stores a new event owned by creatorID. The creator is always a
// participant; unknown participant ids are dropped.
func (s *EventService) Create(ctx context.Context, creatorID int64, in EventInput) (*domain.Event, error) {
	event := &domain.Event{
		Title:       strings.TrimSpace(in.Title),
		StartDate:   in.StartDate,
		Time:        in.Time,
		Duration:    in.Duration,
		Type:        in.Type,
		StartMinute: in.StartMinute,
		EndMinute:   in.EndMinute,
		Description: in.Description,
		Location:    in.Location,
		CreatorID:   creatorID,
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	participants := uniqueIDs(append([]int64{creatorID}, in.Participants...))
	if err := s.events.Create(ctx, event, participants); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	return s.Get(ctx, event.ID)
}

// Get returns an event with its creator and participants.
func (s *EventService) Get(ctx context.Context, id int64) (*domain.Event, error) {
	return s.events.GetByID(ctx, id)
}

// ListForCreator returns the events created by creatorID, optionally on one date.
func (s *EventService) ListForCreator(ctx context.Context, creatorID int64, filter domain.EventFilter) ([]domain.Event, error) {
	filter.Offset, filter.Limit = clampPage(filter.Offset, filter.Limit)
	events, err := s.events.ListByCreator(ctx, creatorID, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Update applies patch to the event. Missing events are reported before
// ownership is checked.
func (s *EventService) Update(ctx context.Context, callerID, eventID int64, patch EventPatch) (*domain.Event, error) {
	event, err := s.owned(ctx, callerID, eventID)
	if err != nil {
		return nil, err
	}

	applyPatch(event, patch)
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	// A replacement list always keeps the creator.
	var participants []int64
	if patch.Participants != nil {
		participants = uniqueIDs(append([]int64{event.CreatorID}, *patch.Participants...))
	}
	if err := s.events.Update(ctx, event, participants); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	return s.Get(ctx, eventID)
}

// Delete removes the event and returns it as it was before deletion.
func (s *EventService) Delete(ctx context.Context, callerID, eventID int64) (*domain.Event, error) {
	event, err := s.owned(ctx, callerID, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.events.Delete(ctx, eventID); err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	return event, nil
}

func (s *EventService) owned(ctx context.Context, callerID, eventID int64) (*domain.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatorID != callerID {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

func applyPatch(e *domain.Event, p EventPatch) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.StartMinute != nil {
		e.StartMinute = *p.StartMinute
	}
	if p.EndMinute != nil {
		e.EndMinute = *p.EndMinute
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Location != nil {
		e.Location = p.Location
	}
	if p.ClearLocation {
		e.Location = nil
	}
}

func validateEvent(e *domain.Event) error {
	if e.Title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if e.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", domain.ErrInvalidInput)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: type must be one of work, personal, social, project", domain.ErrInvalidInput)
	}
	if e.StartMinute < 0 || e.EndMinute > domain.MinutesPerDay || e.StartMinute > e.EndMinute {
		return fmt.Errorf("%w: minutes must satisfy 0 <= startMinute <= endMinute <= %d",
			domain.ErrInvalidInput, domain.MinutesPerDay)
	}
	if e.Location != nil {
		if err := e.Location.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// uniqueIDs drops duplicates, keeping first-seen order. The result is
// never nil.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
