package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatClock renders seconds as MM:SS, or HH:MM:SS once an hour is reached.
func FormatClock(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// ParseClock parses MM:SS or HH:MM:SS into seconds.
func ParseClock(s string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock %q: want MM:SS or HH:MM:SS", s)
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
		total = total*60 + n
	}
	return total, nil
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayIn returns midnight of the calendar day the instant t falls on in loc.
// Two times for the same instant land on the same day whatever zone they
// carry.
func DayIn(t time.Time, loc *time.Location) time.Time {
	return Day(t.In(loc))
}

// CalendarDay reads the year, month and day of date as written and returns
// that day's midnight in loc. Use it for dates a user typed.
func CalendarDay(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
