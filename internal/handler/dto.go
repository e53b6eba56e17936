package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/msomdec/calendar-api/internal/domain"
	"github.com/msomdec/calendar-api/internal/service"
)

// UserDTO is the JSON representation of a user.
type UserDTO struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Image    *string `json:"image"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Image:    optional(u.Image),
	}
}

func toUserDTOs(users []domain.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = toUserDTO(&users[i])
	}
	return dtos
}

// EventDTO is the JSON representation of an event.
type EventDTO struct {
	ID           int64            `json:"id"`
	Title        string           `json:"title"`
	StartDate    string           `json:"start_date"`
	Time         string           `json:"time"`
	Duration     string           `json:"duration"`
	Type         string           `json:"type"`
	StartMinute  int              `json:"startMinute"`
	EndMinute    int              `json:"endMinute"`
	Description  *string          `json:"description"`
	Location     *domain.Location `json:"location"`
	Creator      *UserDTO         `json:"creator"`
	Participants []UserDTO        `json:"participants"`
}

func toEventDTO(e *domain.Event) EventDTO {
	dto := EventDTO{
		ID:           e.ID,
		Title:        e.Title,
		StartDate:    e.StartDate.Format(domain.DateLayout),
		Time:         e.Time,
		Duration:     e.Duration,
		Type:         string(e.Type),
		StartMinute:  e.StartMinute,
		EndMinute:    e.EndMinute,
		Description:  optional(e.Description),
		Location:     e.Location,
		Participants: toUserDTOs(e.Participants),
	}
	if e.Creator != nil {
		creator := toUserDTO(e.Creator)
		dto.Creator = &creator
	}
	return dto
}

func toEventDTOs(events []domain.Event) []EventDTO {
	dtos := make([]EventDTO, len(events))
	for i := range events {
		dtos[i] = toEventDTO(&events[i])
	}
	return dtos
}

// TokenDTO is the response of a successful password login.
type TokenDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Image    string `json:"image"`
}

type eventRequest struct {
	Title        string           `json:"title"`
	StartDate    string           `json:"start_date"`
	Time         string           `json:"time"`
	Duration     string           `json:"duration"`
	Type         string           `json:"type"`
	StartMinute  int              `json:"startMinute"`
	EndMinute    int              `json:"endMinute"`
	Description  string           `json:"description"`
	Location     *domain.Location `json:"location"`
	Participants []int64          `json:"participants"`
}

func (req eventRequest) toInput() (service.EventInput, error) {
	date, err := parseDate(req.StartDate)
	if err != nil {
		return service.EventInput{}, err
	}
	return service.EventInput{
		Title:        req.Title,
		StartDate:    date,
		Time:         req.Time,
		Duration:     req.Duration,
		Type:         domain.EventType(req.Type),
		StartMinute:  req.StartMinute,
		EndMinute:    req.EndMinute,
		Description:  req.Description,
		Location:     req.Location,
		Participants: req.Participants,
	}, nil
}

// eventPatchRequest keeps location raw so that an explicit null can be
// told apart from an absent field.
type eventPatchRequest struct {
	Title        *string         `json:"title"`
	StartDate    *string         `json:"start_date"`
	Time         *string         `json:"time"`
	Duration     *string         `json:"duration"`
	Type         *string         `json:"type"`
	StartMinute  *int            `json:"startMinute"`
	EndMinute    *int            `json:"endMinute"`
	Description  *string         `json:"description"`
	Location     json.RawMessage `json:"location"`
	Participants *[]int64        `json:"participants"`
}

func (req eventPatchRequest) toPatch() (service.EventPatch, error) {
	patch := service.EventPatch{
		Title:        req.Title,
		Time:         req.Time,
		Duration:     req.Duration,
		StartMinute:  req.StartMinute,
		EndMinute:    req.EndMinute,
		Description:  req.Description,
		Participants: req.Participants,
	}
	if req.StartDate != nil {
		date, err := parseDate(*req.StartDate)
		if err != nil {
			return service.EventPatch{}, err
		}
		patch.StartDate = &date
	}
	if req.Type != nil {
		t := domain.EventType(*req.Type)
		patch.Type = &t
	}
	switch {
	case len(req.Location) == 0:
	case string(req.Location) == "null":
		patch.ClearLocation = true
	default:
		var loc domain.Location
		if err := json.Unmarshal(req.Location, &loc); err != nil {
			return service.EventPatch{}, fmt.Errorf("%w: location: %v", domain.ErrInvalidInput, err)
		}
		patch.Location = &loc
	}
	return patch, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: start_date is required", domain.ErrInvalidInput)
	}
	d, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", domain.ErrInvalidInput, s)
	}
	return d, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
