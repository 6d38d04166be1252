// Package schedule turns "read it later" choices into wall-clock times.
// All calculations happen in the location of the supplied now.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

type Preset string

const (
	Tonight  Preset = "tonight"
	Weekend  Preset = "weekend"
	NextWeek Preset = "nextWeek"
	Custom   Preset = "custom"
)

const (
	eveningHour      = 20
	weekendHour      = 10
	daysPerWeek      = 7
	lastDayOfWeekIdx = int(time.Saturday)
)

var customLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func ParsePreset(s string) (Preset, bool) {
	switch strings.TrimSpace(s) {
	case string(Tonight):
		return Tonight, true
	case string(Weekend):
		return Weekend, true
	case string(NextWeek), "nextweek":
		return NextWeek, true
	case string(Custom):
		return Custom, true
	default:
		return "", false
	}
}

// Calculate returns the moment an article saved with preset becomes due.
// custom is only consulted for the Custom preset.
func Calculate(preset Preset, now time.Time, custom *time.Time) time.Time {
	switch preset {
	case Tonight:
		tonight := atClock(now, 0, eveningHour, 0)
		if !tonight.After(now) {
			tonight = atClock(now, 1, eveningHour, 0)
		}
		return tonight

	case Weekend:
		days := (lastDayOfWeekIdx - int(now.Weekday()) + daysPerWeek) % daysPerWeek
		if days == 0 {
			days = daysPerWeek
		}
		return atClock(now, days, weekendHour, 0)

	case NextWeek:
		return atClock(now, daysPerWeek, eveningHour, 0)

	case Custom:
		if custom != nil {
			return *custom
		}
		return atClock(now, 1, eveningHour, 0)

	default:
		return now
	}
}

// NextDailyAt returns today at hour:minute, or tomorrow when that moment is
// not in the future.
func NextDailyAt(now time.Time, hour, minute int) time.Time {
	next := atClock(now, 0, hour, minute)
	if !next.After(now) {
		next = atClock(now, 1, hour, minute)
	}
	return next
}

// EndOfDay is 23:59:59.999 of now's calendar day.
func EndOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), now.Location())
}

func FormatRelative(t, now time.Time) string {
	t = t.In(now.Location())

	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	target := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	diffDays := int(target.Sub(today).Hours() / 24)

	switch {
	case diffDays == 0:
		return "Today"
	case diffDays == 1:
		return "Tomorrow"
	case diffDays < daysPerWeek:
		return t.Weekday().String()
	default:
		return fmt.Sprintf("%d/%d", int(tm), td)
	}
}

// ParseCustom reads a user supplied date in loc. A bare date means 20:00.
func ParseCustom(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)

	for _, layout := range customLayouts {
		t, err := time.ParseInLocation(layout, text, loc)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			t = atClock(t, 0, eveningHour, 0)
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("parse custom date %q: expected YYYY-MM-DD HH:MM", text)
}

func atClock(t time.Time, addDays, hour, minute int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+addDays, hour, minute, 0, 0, t.Location())
}
