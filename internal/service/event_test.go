package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/service"
)

type eventFixture struct {
	events *service.EventService
	alice  *domain.User
	bob    *domain.User
	carol  *domain.User
}

func newEventFixture(t *testing.T) eventFixture {
	t.Helper()
	auth, db := newTestAuthService(t)
	return eventFixture{
		events: service.NewEventService(db.Events()),
		alice:  register(t, auth, "alice", "alice@example.com", "pw"),
		bob:    register(t, auth, "bob", "bob@example.com", "pw"),
		carol:  register(t, auth, "carol", "carol@example.com", "pw"),
	}
}

func march(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

func standup(participants ...int64) service.EventInput {
	return service.EventInput{
		Title:        "Standup",
		StartDate:    march(2),
		Time:         "09:00",
		Duration:     "15m",
		Type:         domain.EventTypeWork,
		StartMinute:  540,
		EndMinute:    555,
		Participants: participants,
	}
}

func participantSet(e *domain.Event) map[int64]bool {
	set := map[int64]bool{}
	for _, id := range e.ParticipantIDs() {
		set[id] = true
	}
	return set
}

func TestEventService_Create_AddsCreator(t *testing.T) {
	f := newEventFixture(t)

	event, err := f.events.Create(context.Background(), f.carol.ID, standup(f.alice.ID, f.bob.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got := participantSet(event)
	if len(got) != 3 || !got[f.alice.ID] || !got[f.bob.ID] || !got[f.carol.ID] {
		t.Fatalf("expected {alice, bob, carol}, got %v", event.ParticipantIDs())
	}
	if event.Creator == nil || event.Creator.ID != f.carol.ID {
		t.Fatalf("expected creator carol, got %+v", event.Creator)
	}
}

func TestEventService_Create_IgnoresUnknownAndDuplicateParticipants(t *testing.T) {
	f := newEventFixture(t)

	event, err := f.events.Create(context.Background(), f.alice.ID, standup(f.alice.ID, f.bob.ID, f.bob.ID, 999))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(event.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %v", event.ParticipantIDs())
	}
}

func TestEventService_Create_Validation(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*service.EventInput)
	}{
		{"empty title", func(in *service.EventInput) { in.Title = "  " }},
		{"missing date", func(in *service.EventInput) { in.StartDate = time.Time{} }},
		{"unknown type", func(in *service.EventInput) { in.Type = "holiday" }},
		{"negative start", func(in *service.EventInput) { in.StartMinute = -1 }},
		{"end past midnight", func(in *service.EventInput) { in.EndMinute = domain.MinutesPerDay + 1 }},
		{"start after end", func(in *service.EventInput) { in.StartMinute, in.EndMinute = 600, 500 }},
		{"online without link", func(in *service.EventInput) { in.Location = domain.NewOnlineLocation("Zoom", "") }},
		{"unknown platform", func(in *service.EventInput) { in.Location = domain.NewOnlineLocation("Skype", "https://x") }},
		{"onsite without address", func(in *service.EventInput) { in.Location = domain.NewOnsiteLocation("") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := standup()
			tc.mutate(&in)
			if _, err := f.events.Create(ctx, f.alice.ID, in); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestEventService_Create_WholeDay(t *testing.T) {
	f := newEventFixture(t)

	in := standup()
	in.StartMinute, in.EndMinute = 0, domain.MinutesPerDay
	if _, err := f.events.Create(context.Background(), f.alice.ID, in); err != nil {
		t.Fatalf("Create whole-day event: %v", err)
	}
}

func TestEventService_Update_Participants(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event, err := f.events.Create(ctx, f.alice.ID, standup(f.bob.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	title := "Renamed"
	updated, err := f.events.Update(ctx, f.alice.ID, event.ID, service.EventPatch{Title: &title})
	if err != nil {
		t.Fatalf("Update title: %v", err)
	}
	if updated.Title != "Renamed" || updated.Time != "09:00" {
		t.Fatalf("partial update changed the wrong fields: %+v", updated)
	}
	if len(updated.Participants) != 2 {
		t.Fatalf("omitting participants must keep them, got %v", updated.ParticipantIDs())
	}

	replacement := []int64{f.carol.ID}
	updated, err = f.events.Update(ctx, f.alice.ID, event.ID, service.EventPatch{Participants: &replacement})
	if err != nil {
		t.Fatalf("Update participants: %v", err)
	}
	got := participantSet(updated)
	if len(got) != 2 || !got[f.alice.ID] || !got[f.carol.ID] {
		t.Fatalf("expected alice and carol, got %v", updated.ParticipantIDs())
	}

	empty := []int64{}
	updated, err = f.events.Update(ctx, f.alice.ID, event.ID, service.EventPatch{Participants: &empty})
	if err != nil {
		t.Fatalf("Update empty participants: %v", err)
	}
	got = participantSet(updated)
	if len(got) != 1 || !got[f.alice.ID] {
		t.Fatalf("an emptied list must still hold the creator, got %v", updated.ParticipantIDs())
	}

	withCreator := []int64{f.alice.ID, f.bob.ID, f.alice.ID}
	updated, err = f.events.Update(ctx, f.alice.ID, event.ID, service.EventPatch{Participants: &withCreator})
	if err != nil {
		t.Fatalf("Update participants with creator: %v", err)
	}
	if len(updated.Participants) != 2 {
		t.Fatalf("expected alice and bob once each, got %v", updated.ParticipantIDs())
	}
}

func TestEventService_Update_Location(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	in := standup()
	in.Location = domain.NewOnsiteLocation("1 Main St")
	event, err := f.events.Create(ctx, f.alice.ID, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := f.events.Update(ctx, f.alice.ID, event.ID, service.EventPatch{
		Location: domain.NewOnlineLocation("", "https://meet.example.com/x"),
	})
	if err != nil {
		t.Fatalf("Update location: %v", err)
	}
	if updated.Location == nil || updated.Location.Online == nil || updated.Location.Online.Platform != "Other" {
		t.Fatalf("expected online location on Other, got %+v", updated.Location)
	}

	updated, err = f.events.Update(ctx, f.alice.ID, event.ID, service.EventPatch{ClearLocation: true})
	if err != nil {
		t.Fatalf("Clear location: %v", err)
	}
	if updated.Location != nil {
		t.Fatalf("expected location cleared, got %+v", updated.Location)
	}
}

func TestEventService_Update_Invalid(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event, err := f.events.Create(ctx, f.alice.ID, standup())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	end := 10
	_, err = f.events.Update(ctx, f.alice.ID, event.ID, service.EventPatch{EndMinute: &end})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEventService_OwnershipAndNotFound(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event, err := f.events.Create(ctx, f.alice.ID, standup(f.bob.ID))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	title := "hijack"
	if _, err := f.events.Update(ctx, f.bob.ID, event.ID, service.EventPatch{Title: &title}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("participant update: expected ErrForbidden, got %v", err)
	}
	if _, err := f.events.Delete(ctx, f.bob.ID, event.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("participant delete: expected ErrForbidden, got %v", err)
	}
	if _, err := f.events.Update(ctx, f.bob.ID, 9999, service.EventPatch{Title: &title}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing event: expected ErrNotFound, got %v", err)
	}

	deleted, err := f.events.Delete(ctx, f.alice.ID, event.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.ID != event.ID || deleted.Title != "Standup" {
		t.Fatalf("expected deleted event returned, got %+v", deleted)
	}
	if _, err := f.events.Get(ctx, event.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestEventService_ListForCreator(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	for _, day := range []int{2, 3, 3} {
		in := standup()
		in.StartDate = march(day)
		if _, err := f.events.Create(ctx, f.alice.ID, in); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := f.events.Create(ctx, f.bob.ID, standup(f.alice.ID)); err != nil {
		t.Fatalf("Create bob's: %v", err)
	}

	all, err := f.events.ListForCreator(ctx, f.alice.ID, domain.EventFilter{})
	if err != nil {
		t.Fatalf("ListForCreator: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected only alice's 3 events, got %d", len(all))
	}

	day := march(3)
	onDay, err := f.events.ListForCreator(ctx, f.alice.ID, domain.EventFilter{Date: &day})
	if err != nil {
		t.Fatalf("ListForCreator by date: %v", err)
	}
	if len(onDay) != 2 {
		t.Fatalf("expected 2 events on March 3, got %d", len(onDay))
	}
}
