// AngelaMos | 2026
// clock.go

package core

import (
	"time"
)

// Clock is injected wherever expiry is evaluated.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func SystemClock() Clock {
	return systemClock{}
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
