package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/service"
)

// EventHandler serves event CRUD and the iCalendar feed.
type EventHandler struct {
	events   *service.EventService
	calendar *service.CalendarService
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(events *service.EventService, calendar *service.CalendarService) *EventHandler {
	return &EventHandler{events: events, calendar: calendar}
}

// HandleCreate creates an event owned by the caller.
// POST /events/
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var req eventRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body.")
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondError(w, "create event", err)
		return
	}

	event, err := h.events.Create(r.Context(), user.ID, in)
	if err != nil {
		respondError(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// HandleList returns the caller's events.
// GET /events/?date=YYYY-MM-DD&skip=0&limit=100
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	filter, err := eventFilter(r)
	if err != nil {
		respondError(w, "list events", err)
		return
	}

	events, err := h.events.ListForCreator(r.Context(), user.ID, filter)
	if err != nil {
		respondError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTOs(events))
}

// HandleGet returns a single event.
// GET /events/{id}
func (h *EventHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		respondError(w, "get event", err)
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		respondEventError(w, "get event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// HandleUpdate applies a partial update. Only the creator may update.
// PUT /events/{id}
func (h *EventHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id, err := eventID(r)
	if err != nil {
		respondError(w, "update event", err)
		return
	}

	var req eventPatchRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body.")
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		respondError(w, "update event", err)
		return
	}

	event, err := h.events.Update(r.Context(), user.ID, id, patch)
	if err != nil {
		respondEventError(w, "update event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// HandleDelete removes an event and echoes it back. Only the creator may delete.
// DELETE /events/{id}
func (h *EventHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id, err := eventID(r)
	if err != nil {
		respondError(w, "delete event", err)
		return
	}

	event, err := h.events.Delete(r.Context(), user.ID, id)
	if err != nil {
		respondEventError(w, "delete event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// HandleCalendar exports the caller's events as iCalendar.
// GET /events/calendar.ics?date=YYYY-MM-DD
func (h *EventHandler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	date, err := dateParam(r)
	if err != nil {
		respondError(w, "export calendar", err)
		return
	}

	var buf bytes.Buffer
	if err := h.calendar.Export(r.Context(), &buf, user.ID, date); err != nil {
		respondError(w, "export calendar", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("write calendar export", "error", err)
	}
}

// dateParam reads the optional date query parameter.
func dateParam(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return nil, nil
	}
	date, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return nil, invalidf("date must be YYYY-MM-DD")
	}
	return &date, nil
}

func respondEventError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	respondError(w, action, err)
}

func eventID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, invalidf("event id must be an integer")
	}
	return id, nil
}

func eventFilter(r *http.Request) (domain.EventFilter, error) {
	skip, limit, err := pagination(r)
	if err != nil {
		return domain.EventFilter{}, err
	}
	date, err := dateParam(r)
	if err != nil {
		return domain.EventFilter{}, err
	}
	return domain.EventFilter{Date: date, Offset: skip, Limit: limit}, nil
}
