package compliance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a local wall-clock time as minutes since midnight.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// ClockOf returns the wall-clock time of t in t's location.
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

// ParseClock parses "HH:MM" (a single digit hour is accepted).
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || hh == "" || len(hh) > 2 || len(mm) != 2 || !allDigits(hh) || !allDigits(mm) {
		return 0, fmt.Errorf("%w: clock %q", ErrUnparseableTimestamp, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: clock %q", ErrUnparseableTimestamp, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: clock %q", ErrUnparseableTimestamp, s)
	}
	return NewClock(h, m), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

type QuietHours struct {
	Start     Clock
	End       Clock
	StrictEnd Clock

	// StrictJurisdictions are upper-case state codes that end at StrictEnd.
	StrictJurisdictions map[string]bool
}

func DefaultQuietHours() QuietHours {
	return QuietHours{
		Start:     NewClock(8, 0),
		End:       NewClock(21, 0),
		StrictEnd: NewClock(20, 0),
		StrictJurisdictions: map[string]bool{
			"FL": true,
			"OK": true,
		},
	}
}

// EndFor returns the window end for a jurisdiction code; "" means none given.
func (q QuietHours) EndFor(jurisdiction string) Clock {
	code := strings.ToUpper(strings.TrimSpace(jurisdiction))
	if code != "" && q.StrictJurisdictions[code] {
		return q.StrictEnd
	}
	return q.End
}

// Allows reports whether c is inside [Start, end] for the jurisdiction.
func (q QuietHours) Allows(c Clock, jurisdiction string) bool {
	return c >= q.Start && c <= q.EndFor(jurisdiction)
}

// Blocked reports whether quiet hours are in effect at localTime ("HH:MM").
// An unparseable time blocks.
func (q QuietHours) Blocked(localTime, jurisdiction string) bool {
	c, err := ParseClock(localTime)
	if err != nil {
		return true
	}
	return !q.Allows(c, jurisdiction)
}

// NextOpening returns t when sending is allowed at t, otherwise the next
// window start in t's location.
func (q QuietHours) NextOpening(t time.Time, jurisdiction string) time.Time {
	c := ClockOf(t)
	if q.Allows(c, jurisdiction) {
		return t
	}
	y, mo, d := t.Date()
	open := time.Date(y, mo, d, q.Start.Hour(), q.Start.Minute(), 0, 0, t.Location())
	if c > q.EndFor(jurisdiction) {
		open = time.Date(y, mo, d+1, q.Start.Hour(), q.Start.Minute(), 0, 0, t.Location())
	}
	return open
}
