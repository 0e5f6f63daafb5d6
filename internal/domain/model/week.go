package model

import (
	"fmt"
	"strings"
	"time"
)

const weekLayout = "2006-01-02"

// Week identifies a reporting period by the Monday it starts on.
type Week string

// ParseWeek accepts any YYYY-MM-DD date and normalises it to its Monday.
func ParseWeek(s string) (Week, error) {
	t, err := time.Parse(weekLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidWeek, s)
	}
	return WeekOf(t), nil
}

// WeekOf returns the week containing t.
func WeekOf(t time.Time) Week {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(t.Weekday()) + 6) % 7 // Monday == 0
	return Week(t.AddDate(0, 0, -offset).Format(weekLayout))
}

// Start returns the Monday as a time.
func (w Week) Start() time.Time {
	t, _ := time.Parse(weekLayout, string(w))
	return t
}

// Previous returns the week before w.
func (w Week) Previous() Week {
	return Week(w.Start().AddDate(0, 0, -7).Format(weekLayout))
}

// Next returns the week after w.
func (w Week) Next() Week {
	return Week(w.Start().AddDate(0, 0, 7).Format(weekLayout))
}

// Label renders the week for display, e.g. "w/c 13 Oct 2026".
func (w Week) Label() string {
	return "w/c " + w.Start().Format("2 Jan 2006")
}

func (w Week) String() string { return string(w) }
