// Package status derives tournament lifecycle states from the clock and
// persists forward transitions.
package status

import (
	"strings"
	"time"

	"github.com/battlegrounds/tournaments/internal/domain"
)

// DefaultMatchWindow is how long a tournament stays live after its start.
const DefaultMatchWindow = 2 * time.Hour

// Accepted time-of-day layouts, tried in order against the upper-cased input.
var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3PM",
	"3 PM",
	"15.04",
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// ParseTimeOfDay parses the free-text tournament time. The second return is
// false when the value is empty or in no accepted layout.
func ParseTimeOfDay(raw string) (TimeOfDay, bool) {
	s := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	if s == "" {
		return TimeOfDay{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, true
		}
	}
	return TimeOfDay{}, false
}

// Schedule maps a tournament's date and time to lifecycle boundaries.
type Schedule struct {
	Location *time.Location
	Window   time.Duration
}

// NewSchedule returns a Schedule, defaulting to UTC and a two hour window.
func NewSchedule(loc *time.Location, window time.Duration) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	if window <= 0 {
		window = DefaultMatchWindow
	}
	return Schedule{Location: loc, Window: window}
}

func (s Schedule) midnight(t *domain.Tournament) time.Time {
	d := t.TournamentDate.In(s.Location)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.Location)
}

// Start returns the scheduled start. ok is false when the time is unparseable.
func (s Schedule) Start(t *domain.Tournament) (start time.Time, ok bool) {
	tod, ok := ParseTimeOfDay(t.TournamentTime)
	if !ok {
		return time.Time{}, false
	}
	m := s.midnight(t)
	return time.Date(m.Year(), m.Month(), m.Day(), tod.Hour, tod.Minute, tod.Second, 0, s.Location), true
}

// SortTime is the scheduled start when known, otherwise the start of the
// tournament's calendar day.
func (s Schedule) SortTime(t *domain.Tournament) time.Time {
	if start, ok := s.Start(t); ok {
		return start
	}
	return s.midnight(t)
}

// Target returns the status the tournament should have at now.
//
// Without a parseable time the tournament never goes live; it completes once
// the latest possible match on its date would have ended.
func (s Schedule) Target(t *domain.Tournament, now time.Time) domain.Status {
	start, ok := s.Start(t)
	if !ok {
		end := s.midnight(t).AddDate(0, 0, 1).Add(s.Window)
		if now.Before(end) {
			return domain.StatusUpcoming
		}
		return domain.StatusCompleted
	}

	switch {
	case now.Before(start):
		return domain.StatusUpcoming
	case now.Before(start.Add(s.Window)):
		return domain.StatusLive
	default:
		return domain.StatusCompleted
	}
}
