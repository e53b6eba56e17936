package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/msomdec/calendar-api/internal/domain"
)

const (
	productID = "-//calendar-api//EN"
	// floatingLayout is a DATE-TIME without a zone, read in the viewer's local time.
	floatingLayout = "20060102T150405"
)

// CalendarService renders a user's events as an iCalendar feed.
type CalendarService struct {
	events *EventService
	now    func() time.Time
}

// NewCalendarService creates a new CalendarService.
func NewCalendarService(events *EventService) *CalendarService {
	return &CalendarService{events: events, now: time.Now}
}

// Export writes every event created by creatorID to w, optionally only
// those on date.
func (s *CalendarService) Export(ctx context.Context, w io.Writer, creatorID int64, date *time.Time) error {
	var events []domain.Event
	for offset := 0; ; offset += MaxPageSize {
		page, err := s.events.ListForCreator(ctx, creatorID,
			domain.EventFilter{Date: date, Offset: offset, Limit: MaxPageSize})
		if err != nil {
			return err
		}
		events = append(events, page...)
		if len(page) < MaxPageSize {
			break
		}
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	stamp := s.now().UTC()
	for i := range events {
		cal.Children = append(cal.Children, toVEvent(&events[i], stamp))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// toVEvent maps an event onto a VEVENT. Start and end are floating times
// derived from the date and minute offsets.
func toVEvent(e *domain.Event, stamp time.Time) *ical.Component {
	y, m, d := e.StartDate.Date()
	start := time.Date(y, m, d, 0, e.StartMinute, 0, 0, time.UTC)
	end := time.Date(y, m, d, 0, e.EndMinute, 0, 0, time.UTC)

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, fmt.Sprintf("event-%d@calendar-api", e.ID))
	ve.Props.SetText(ical.PropSummary, e.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.Set(floating(ical.PropDateTimeStart, start))
	ve.Props.Set(floating(ical.PropDateTimeEnd, end))
	ve.Props.SetText(ical.PropCategories, string(e.Type))

	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != nil {
		ve.Props.SetText(ical.PropLocation, e.Location.String())
		if e.Location.Online != nil {
			ve.Props.SetText(ical.PropURL, e.Location.Online.Link)
		}
	}
	if e.Creator != nil {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + e.Creator.Email
		p.Params.Set(ical.ParamCommonName, e.Creator.Username)
		ve.Props.Add(p)
	}
	for _, u := range e.Participants {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + u.Email
		p.Params.Set(ical.ParamCommonName, u.Username)
		ve.Props.Add(p)
	}
	return ve
}

func floating(name string, t time.Time) *ical.Prop {
	p := ical.NewProp(name)
	p.Value = t.Format(floatingLayout)
	return p
}
