// AngelaMos | 2026
// entity.go

package participation

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Performer struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name"  validate:"max=100"`
}

func (p Performer) normalized() string {
	return strings.ToLower(strings.TrimSpace(p.FirstName)) + " " +
		strings.ToLower(strings.TrimSpace(p.LastName))
}

// Performers is stored as a JSONB array.
type Performers []Performer

func (p Performers) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

func (p *Performers) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Performers{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan performers: unsupported type %T", src)
	}
	return json.Unmarshal(raw, p)
}

// Event is a dated occasion members and users can enter a team for.
// Date is a calendar day; its clock time is ignored.
type Event struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Date      time.Time `db:"event_date"`
	CreatedAt time.Time `db:"created_at"`
}

// Day returns the event's calendar day at midnight in loc.
func (e *Event) Day(loc *time.Location) time.Time {
	y, m, d := e.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

type Registration struct {
	ID           string     `db:"id"`
	EventID      string     `db:"event_id"`
	RegistrantID string     `db:"registrant_id"`
	Performers   Performers `db:"performers"`
	CreatedAt    time.Time  `db:"created_at"`
}
