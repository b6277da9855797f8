// AngelaMos | 2026
// checker.go

package participation

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/carterperez-dev/member-portal/internal/core"
)

// TeamKey fingerprints a performer list. Order, case and surrounding
// whitespace do not change the key. An empty list yields "".
func TeamKey(performers []Performer) string {
	names := make([]string, 0, len(performers))
	for _, p := range performers {
		names = append(names, p.normalized())
	}
	slices.Sort(names)
	return strings.Join(names, "|")
}

// CheckDuplicate rejects a candidate whose team the same registrant has
// already entered. Registrations by other registrants never conflict.
func CheckDuplicate(existing []Registration, candidate Registration) error {
	key := TeamKey(candidate.Performers)

	for _, reg := range existing {
		if reg.RegistrantID != candidate.RegistrantID {
			continue
		}
		if candidate.EventID != "" && reg.EventID != candidate.EventID {
			continue
		}
		if TeamKey(reg.Performers) == key {
			return fmt.Errorf("registration %s: %w", reg.ID, core.ErrDuplicateTeam)
		}
	}

	return nil
}

// CheckCancellation allows a cancellation only on a day strictly before
// the event day. "Today" is taken in eventDate's location.
func CheckCancellation(now, eventDate time.Time) error {
	today := core.StartOfDay(now.In(eventDate.Location()))
	if !today.Before(core.StartOfDay(eventDate)) {
		return core.ErrCancellationClosed
	}
	return nil
}
