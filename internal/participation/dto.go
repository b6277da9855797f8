// AngelaMos | 2026
// dto.go

package participation

import (
	"time"
)

const dateLayout = "2006-01-02"

type CreateEventRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Date  string `json:"date"  validate:"required,datetime=2006-01-02"`
}

type RegisterRequest struct {
	Performers []Performer `json:"performers" validate:"required,min=1,max=20,dive"`
}

type EventResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

func ToEventResponse(e *Event) EventResponse {
	return EventResponse{
		ID:        e.ID,
		Title:     e.Title,
		Date:      e.Date.Format(dateLayout),
		CreatedAt: e.CreatedAt,
	}
}

type RegistrationResponse struct {
	ID         string      `json:"id"`
	EventID    string      `json:"event_id"`
	Performers []Performer `json:"performers"`
	CreatedAt  time.Time   `json:"created_at"`
}

func ToRegistrationResponse(r *Registration) RegistrationResponse {
	performers := []Performer(r.Performers)
	if performers == nil {
		performers = []Performer{}
	}
	return RegistrationResponse{
		ID:         r.ID,
		EventID:    r.EventID,
		Performers: performers,
		CreatedAt:  r.CreatedAt,
	}
}
