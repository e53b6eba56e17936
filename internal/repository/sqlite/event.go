package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/calendar-api/internal/domain"
)

const eventColumns = `id, title, start_date, time, duration, type, start_minute, end_minute, description, location, creator_id, created_at, updated_at`

// eventRepo implements domain.EventRepository using SQLite.
type eventRepo struct {
	db    *sql.DB
	users *userRepo
}

func (r *eventRepo) Create(ctx context.Context, event *domain.Event, participantIDs []int64) error {
	location, err := encodeLocation(event.Location)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO events (title, start_date, time, duration, type, start_minute, end_minute, description, location, creator_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Title, event.StartDate.Format(domain.DateLayout), event.Time, event.Duration, string(event.Type),
		event.StartMinute, event.EndMinute, nullString(event.Description), location, event.CreatorID, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	eventID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get event id: %w", err)
	}

	if err := insertParticipants(ctx, tx, eventID, participantIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	event.ID = eventID
	event.CreatedAt = now
	event.UpdatedAt = now
	return nil
}

func (r *eventRepo) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	if err := r.loadPeople(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *eventRepo) ListByCreator(ctx context.Context, creatorID int64, filter domain.EventFilter) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE creator_id = ?`
	args := []any{creatorID}
	if filter.Date != nil {
		query += ` AND start_date = ?`
		args = append(args, filter.Date.Format(domain.DateLayout))
	}
	query += ` ORDER BY start_date, start_minute, id LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Release the single connection before loading participants.
	rows.Close()

	for i := range events {
		if err := r.loadPeople(ctx, &events[i]); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (r *eventRepo) Update(ctx context.Context, event *domain.Event, participantIDs []int64) error {
	location, err := encodeLocation(event.Location)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE events SET title = ?, start_date = ?, time = ?, duration = ?, type = ?, start_minute = ?, end_minute = ?,
		 description = ?, location = ?, updated_at = ? WHERE id = ?`,
		event.Title, event.StartDate.Format(domain.DateLayout), event.Time, event.Duration, string(event.Type),
		event.StartMinute, event.EndMinute, nullString(event.Description), location, now, event.ID,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	if participantIDs != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM event_participants WHERE event_id = ?", event.ID); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		if err := insertParticipants(ctx, tx, event.ID, participantIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	event.UpdatedAt = now
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectOneRow(result)
}

func (r *eventRepo) loadPeople(ctx context.Context, e *domain.Event) error {
	creator, err := r.users.GetByID(ctx, e.CreatorID)
	if err != nil {
		return fmt.Errorf("load creator: %w", err)
	}
	e.Creator = creator

	participants, err := r.users.listParticipants(ctx, e.ID)
	if err != nil {
		return err
	}
	e.Participants = participants
	return nil
}

// insertParticipants links users to an event, skipping ids with no user row.
func insertParticipants(ctx context.Context, tx *sql.Tx, eventID int64, userIDs []int64) error {
	for _, userID := range userIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO event_participants (event_id, user_id)
			 SELECT ?, id FROM users WHERE id = ?`, eventID, userID)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return nil
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var (
		e                     domain.Event
		startDate, eventType  string
		description, location sql.NullString
	)
	err := row.Scan(&e.ID, &e.Title, &startDate, &e.Time, &e.Duration, &eventType, &e.StartMinute, &e.EndMinute,
		&description, &location, &e.CreatorID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.StartDate, err = time.Parse(domain.DateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	e.Type = domain.EventType(eventType)
	e.Description = description.String
	if location.Valid {
		e.Location = &domain.Location{}
		if err := json.Unmarshal([]byte(location.String), e.Location); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
	}
	return &e, nil
}

func encodeLocation(l *domain.Location) (sql.NullString, error) {
	if l == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode location: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
