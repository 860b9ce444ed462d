package pricing

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/models"
)

// ParseClock converts an "HH:MM" time of day into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// InSchedule reports whether now falls inside the recurring window, read in
// now's location. The part of an overnight window after midnight belongs to
// the day it started on. A nil schedule is always open.
func InSchedule(s *models.Schedule, now time.Time) bool {
	if s == nil {
		return true
	}
	start, err := ParseClock(s.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return false
	}

	onDay := func(d time.Weekday) bool {
		return len(s.Days) == 0 || slices.Contains(s.Days, d)
	}
	minute := now.Hour()*60 + now.Minute()
	today := now.Weekday()
	if start < end {
		return onDay(today) && minute >= start && minute < end
	}
	yesterday := (today + 6) % 7
	return (onDay(today) && minute >= start) || (onDay(yesterday) && minute < end)
}
