// Package timeutil provides timezone-aware date helpers for the learning
// mentor bot. Streak and daily-flag logic operates on date strings
// (YYYY-MM-DD) in a single configured timezone, with an early-morning grace
// window so night owls can finish yesterday's log before 03:00.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Clock provides the current time. Swappable in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the real wall-clock time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Used in tests.
type FixedClock struct {
	T time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time { return c.T }

// Common date/time formats.
const (
	// FormatDate is the canonical date format used for daily flags and
	// streak bookkeeping (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the full timestamp format stored in the state
	// document (last_updated, started_at).
	FormatDateTime = "2006-01-02 15:04:05"
	// FormatHumanDate is a human-readable format for embeds.
	FormatHumanDate = "January 2, 2006"
)

// Zone wraps a timezone plus the streak grace hour and is the single source
// of date arithmetic for the bot.
type Zone struct {
	loc       *time.Location
	graceHour int
	clock     Clock
}

// NewZone creates a Zone for the given IANA timezone name. Unknown names
// fall back to UTC. graceHour is the local hour before which a log still
// counts toward the previous day's streak (0 disables the grace window).
func NewZone(name string, graceHour int) *Zone {
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}
	if graceHour < 0 || graceHour > 12 {
		graceHour = 0
	}
	return &Zone{loc: loc, graceHour: graceHour, clock: SystemClock{}}
}

// WithClock returns a copy of the Zone using the given clock.
func (z *Zone) WithClock(c Clock) *Zone {
	return &Zone{loc: z.loc, graceHour: z.graceHour, clock: c}
}

// Location returns the underlying time.Location.
func (z *Zone) Location() *time.Location { return z.loc }

// Now returns the current time in the configured timezone.
func (z *Zone) Now() time.Time { return z.clock.Now().In(z.loc) }

// Today returns today's date string (wall clock, no grace adjustment).
func (z *Zone) Today() string { return z.Now().Format(FormatDate) }

// Yesterday returns yesterday's date string.
func (z *Zone) Yesterday() string {
	return z.Now().AddDate(0, 0, -1).Format(FormatDate)
}

// EffectiveDate returns the date a log posted right now counts toward.
// Before the grace hour it is the previous calendar day, otherwise today.
// Daily-flag deduplication must NOT use this - it exists for streak
// continuity only.
func (z *Zone) EffectiveDate() string {
	return z.EffectiveDateAt(z.clock.Now())
}

// EffectiveDateAt is EffectiveDate for an arbitrary instant.
func (z *Zone) EffectiveDateAt(t time.Time) string {
	local := t.In(z.loc)
	if local.Hour() < z.graceHour {
		return local.AddDate(0, 0, -1).Format(FormatDate)
	}
	return local.Format(FormatDate)
}

// WithinGrace reports whether the current local time is inside the grace
// window (before graceHour).
func (z *Zone) WithinGrace() bool {
	return z.Now().Hour() < z.graceHour
}

// StreakDeadline returns the instant by which the user must log to keep
// today's streak alive: graceHour tomorrow, or graceHour today when we are
// still inside the grace window.
func (z *Zone) StreakDeadline() time.Time {
	now := z.Now()
	day := now
	if !z.WithinGrace() {
		day = now.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), z.graceHour, 0, 0, 0, z.loc)
}

// TimeUntilDeadline returns the remaining time before the streak deadline.
func (z *Zone) TimeUntilDeadline() time.Duration {
	return z.StreakDeadline().Sub(z.Now())
}

// ParseDate parses a YYYY-MM-DD string in the configured timezone.
func (z *Zone) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, s, z.loc)
}

// LastNDays returns the last n date strings, today first.
func (z *Zone) LastNDays(n int) []string {
	now := z.Now()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, now.AddDate(0, 0, -i).Format(FormatDate))
	}
	return out
}

// DailyThreadName returns the display name for today's learning thread.
func (z *Zone) DailyThreadName() string {
	return z.Now().Format("📚 Learning Log - " + FormatHumanDate)
}

// ShouldSendReminder decides whether a streak reminder is due for a user
// whose last log was on lastLogDate. Evening reminders fire after 20:00
// with under 7 hours to the deadline; grace-window reminders fire with
// under 2 hours left.
func (z *Zone) ShouldSendReminder(lastLogDate string) (bool, string) {
	if lastLogDate == "" {
		return false, ""
	}
	if lastLogDate == z.EffectiveDate() {
		return false, ""
	}

	remaining := z.TimeUntilDeadline()
	hour := z.Now().Hour()

	if hour >= 20 && remaining <= 7*time.Hour {
		return true, "⚠️ Streak at risk! " + FormatTimeRemaining(remaining) + " until deadline!"
	}
	if z.WithinGrace() && remaining <= 2*time.Hour {
		return true, "🚨 URGENT: Only " + FormatTimeRemaining(remaining) + " left to save your streak!"
	}

	return false, ""
}

// DaysBetween returns the absolute number of calendar days between two
// date strings, or -1 if either fails to parse.
func DaysBetween(date1, date2 string) int {
	d1, err1 := time.Parse(FormatDate, date1)
	d2, err2 := time.Parse(FormatDate, date2)
	if err1 != nil || err2 != nil {
		return -1
	}
	days := int(d2.Sub(d1).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// IsConsecutiveDay reports whether current is exactly one day after last.
func IsConsecutiveDay(last, current string) bool {
	d1, err1 := time.Parse(FormatDate, last)
	d2, err2 := time.Parse(FormatDate, current)
	if err1 != nil || err2 != nil {
		return false
	}
	return d1.AddDate(0, 0, 1).Equal(d2)
}

// IsSameDay reports whether two date strings are the same calendar day.
func IsSameDay(date1, date2 string) bool {
	return date1 != "" && date1 == date2
}

// FormatTimeRemaining renders a duration as "3h 41m" for reminder text.
func FormatTimeRemaining(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		return "expired"
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", total)
	}
}

// StreakEmoji returns the flair shown next to a streak count.
func StreakEmoji(streak int) string {
	switch {
	case streak >= 100:
		return "👑"
	case streak >= 30:
		return "💎"
	case streak >= 7:
		return "🔥"
	case streak >= 3:
		return "⭐"
	case streak >= 1:
		return "✨"
	default:
		return "💤"
	}
}
