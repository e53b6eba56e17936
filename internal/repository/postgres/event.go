package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msomdec/calendar-api/internal/domain"
)

const eventColumns = `id, title, start_date, time, duration, type, start_minute, end_minute, description, location, creator_id, created_at, updated_at`

type eventRepo struct {
	pool  *pgxpool.Pool
	users *userRepo
}

func (r *eventRepo) Create(ctx context.Context, event *domain.Event, participantIDs []int64) error {
	location, err := encodeLocation(event.Location)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO events (title, start_date, time, duration, type, start_minute, end_minute, description, location, creator_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id, created_at, updated_at`,
			event.Title, event.StartDate, event.Time, event.Duration, string(event.Type),
			event.StartMinute, event.EndMinute, nullable(event.Description), location, event.CreatorID,
		).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return insertParticipants(ctx, tx, event.ID, participantIDs)
	})
}

func (r *eventRepo) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	e, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	query := `SELECT ` + eventColumns + ` FROM events WHERE creator_id = $1`
	args := []any{creatorID}
	if filter.Date != nil {
		query += ` AND start_date = $2`
		args = append(args, *filter.Date)
	}
	query += fmt.Sprintf(` ORDER BY start_date, start_minute, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Event, error) {
		e, err := scanEvent(row)
		if err != nil {
			return domain.Event{}, err
		}
		return *e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}

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

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE events SET title = $1, start_date = $2, time = $3, duration = $4, type = $5, start_minute = $6,
			 end_minute = $7, description = $8, location = $9, updated_at = NOW() WHERE id = $10
			 RETURNING updated_at`,
			event.Title, event.StartDate, event.Time, event.Duration, string(event.Type),
			event.StartMinute, event.EndMinute, nullable(event.Description), location, event.ID,
		).Scan(&event.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("update event: %w", err)
		}

		if participantIDs == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, "DELETE FROM event_participants WHERE event_id = $1", event.ID); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		return insertParticipants(ctx, tx, event.ID, participantIDs)
	})
}

func (r *eventRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return expectOneRow(tag)
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
func insertParticipants(ctx context.Context, tx pgx.Tx, eventID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO event_participants (event_id, user_id)
		 SELECT $1, id FROM users WHERE id = ANY($2)
		 ON CONFLICT DO NOTHING`, eventID, userIDs)
	if err != nil {
		return fmt.Errorf("insert participants: %w", err)
	}
	return nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		e           domain.Event
		eventType   string
		description *string
		location    []byte
	)
	err := row.Scan(&e.ID, &e.Title, &e.StartDate, &e.Time, &e.Duration, &eventType, &e.StartMinute, &e.EndMinute,
		&description, &location, &e.CreatorID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Type = domain.EventType(eventType)
	e.Description = deref(description)
	if location != nil {
		e.Location = &domain.Location{}
		if err := json.Unmarshal(location, e.Location); err != nil {
			return nil, fmt.Errorf("decode location: %w", err)
		}
	}
	return &e, nil
}

func encodeLocation(l *domain.Location) ([]byte, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode location: %w", err)
	}
	return b, nil
}
