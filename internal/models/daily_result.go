package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the layout of DailyResult.Date.
const DateLayout = "2006-01-02"

// SessionResult is the settled SET reading and 2D number of one session.
type SessionResult struct {
	Set   string `json:"set"`
	Value string `json:"value"`
	TwoD  TwoD   `json:"twoD"`
}

// Validate checks that all session result fields are valid
func (r *SessionResult) Validate() error {
	if r.Set == "" {
		return errors.New("set index must not be empty")
	}
	if r.Value == "" {
		return errors.New("set value must not be empty")
	}
	if !r.TwoD.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTwoD, r.TwoD)
	}
	return nil
}

// DailyResult holds all session results of one trading day. Sessions that
// have not been drawn (or were missing upstream) are nil.
type DailyResult struct {
	Date      string         `json:"date"`
	S1100     *SessionResult `json:"s11_00"`
	S1201     *SessionResult `json:"s12_01"`
	S1500     *SessionResult `json:"s15_00"`
	S1630     *SessionResult `json:"s16_30"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Validate checks the date format and every present session result.
func (d *DailyResult) Validate() error {
	if d.Date == "" {
		return errors.New("date must not be empty")
	}
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	for _, s := range AllSessions {
		r := d.Result(s)
		if r == nil {
			continue
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("session %s: %w", s, err)
		}
	}
	return nil
}

// Result returns the result of the given session, or nil.
func (d *DailyResult) Result(s Session) *SessionResult {
	switch s {
	case S1100:
		return d.S1100
	case S1201:
		return d.S1201
	case S1500:
		return d.S1500
	case S1630:
		return d.S1630
	}
	return nil
}

// SetResult stores r as the result of session s.
func (d *DailyResult) SetResult(s Session, r *SessionResult) {
	switch s {
	case S1100:
		d.S1100 = r
	case S1201:
		d.S1201 = r
	case S1500:
		d.S1500 = r
	case S1630:
		d.S1630 = r
	}
}

// ApplyAfternoonCopy enforces that the 15:00 result is a copy of the 12:01
// result. Upstream occasionally publishes a diverging 15:00 value.
func (d *DailyResult) ApplyAfternoonCopy() {
	if d.S1201 != nil {
		cp := *d.S1201
		d.S1500 = &cp
	}
}

// Merge overwrites the sessions of d with every non-nil session of other.
func (d *DailyResult) Merge(other *DailyResult) {
	for _, s := range AllSessions {
		if r := other.Result(s); r != nil {
			cp := *r
			d.SetResult(s, &cp)
		}
	}
	if other.UpdatedAt.After(d.UpdatedAt) {
		d.UpdatedAt = other.UpdatedAt
	}
}

// Numbers returns the 2D numbers of the requested sessions, latest session
// first. Sessions without a result are skipped.
func (d *DailyResult) Numbers(sessions []Session) []TwoD {
	var out []TwoD
	for i := len(AllSessions) - 1; i >= 0; i-- {
		s := AllSessions[i]
		if !containsSession(sessions, s) {
			continue
		}
		if r := d.Result(s); r != nil {
			out = append(out, r.TwoD)
		}
	}
	return out
}

func containsSession(sessions []Session, s Session) bool {
	for _, x := range sessions {
		if x == s {
			return true
		}
	}
	return false
}
