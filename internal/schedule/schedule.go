// Package schedule decides how often the live feed is polled based on the
// market clock: fast around result times, slow during trading hours, and not at
// all on weekends or outside market hours.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/rewired-gh/twodoracle/internal/models"
)

const (
	openHour  = 8
	closeHour = 18

	fastBefore = 5 * time.Minute
	fastAfter  = 2 * time.Minute

	// SettleWindow is how long after a result time the live reading still
	// equals the published result.
	SettleWindow = 2 * time.Minute

	feedTimeLayout  = "2006-01-02 15:04:05"
	feedClockLayout = "15:04:05"
)

// resultSessions are the slots published by the live feed. 15:00 is derived
// from 12:01 and never read live.
var resultSessions = []models.Session{models.S1100, models.S1201, models.S1630}

// Policy computes polling intervals in the market time zone
type Policy struct {
	loc    *time.Location
	fast   time.Duration
	normal time.Duration
}

// NewPolicy creates a polling policy
func NewPolicy(loc *time.Location, fast, normal time.Duration) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	return &Policy{loc: loc, fast: fast, normal: normal}
}

// Interval returns the polling interval at now. ok is false when the market is
// closed and no polling should happen.
func (p *Policy) Interval(now time.Time) (interval time.Duration, ok bool) {
	t := now.In(p.loc)
	if isWeekend(t) {
		return 0, false
	}
	if t.Hour() < openHour || t.Hour() > closeHour {
		return 0, false
	}

	minute := t.Truncate(time.Minute)
	for _, s := range resultSessions {
		at := p.sessionTime(t, s)
		if !minute.Before(at.Add(-fastBefore)) && !minute.After(at.Add(fastAfter)) {
			return p.fast, true
		}
	}
	return p.normal, true
}

// NextWake returns the next market opening after now.
func (p *Policy) NextWake(now time.Time) time.Time {
	t := now.In(p.loc)
	open := time.Date(t.Year(), t.Month(), t.Day(), openHour, 0, 0, 0, p.loc)
	if !t.Before(open) {
		open = open.AddDate(0, 0, 1)
	}
	for isWeekend(open) {
		open = open.AddDate(0, 0, 1)
	}
	return open
}

// SettledSession returns the session whose result time passed within the
// settle window, so the live reading at now is that session's result.
func (p *Policy) SettledSession(now time.Time) (models.Session, bool) {
	t := now.In(p.loc)
	if isWeekend(t) {
		return "", false
	}
	for _, s := range resultSessions {
		at := p.sessionTime(t, s)
		if !t.Before(at) && t.Before(at.Add(SettleWindow)) {
			return s, true
		}
	}
	return "", false
}

// SessionTime returns the result time of session s on the trading date of now.
func (p *Policy) SessionTime(now time.Time, s models.Session) time.Time {
	return p.sessionTime(now.In(p.loc), s)
}

// PublishedAt resolves the feed's update clock ("16:30:01" or
// "2024-07-29 16:30:01") to a time. A bare clock is placed on the trading
// date of now.
func (p *Policy) PublishedAt(now time.Time, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	if t, err := time.ParseInLocation(feedTimeLayout, clock, p.loc); err == nil {
		return t, nil
	}
	c, err := time.ParseInLocation(feedClockLayout, clock, p.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized feed time %q", clock)
	}
	t := now.In(p.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour(), c.Minute(), c.Second(), 0, p.loc), nil
}

// Date returns the trading date of now in the market time zone.
func (p *Policy) Date(now time.Time) string {
	return now.In(p.loc).Format(models.DateLayout)
}

func (p *Policy) sessionTime(day time.Time, s models.Session) time.Time {
	h, m := s.Clock()
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, p.loc)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}
