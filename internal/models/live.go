package models

import (
	"errors"
	"fmt"
	"time"
)

// LiveReading is a point-in-time reading of the live SET feed
type LiveReading struct {
	SetIndex  string    `json:"setIndex"`
	Value     string    `json:"value"`
	TwoD      TwoD      `json:"twoD"`
	UpdatedAt string    `json:"lastUpdated"` // feed-provided clock string, e.g. "16:30:01"
	FetchedAt time.Time `json:"fetchedAt"`
}

// Validate checks that all live reading fields are valid
func (r *LiveReading) Validate() error {
	if r.SetIndex == "" {
		return errors.New("set index must not be empty")
	}
	if r.Value == "" {
		return errors.New("set value must not be empty")
	}
	if !r.TwoD.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTwoD, r.TwoD)
	}
	if r.FetchedAt.After(time.Now()) {
		return errors.New("fetched at must not be in the future")
	}
	return nil
}

// SessionResult converts the reading into a settled session result.
func (r *LiveReading) SessionResult() *SessionResult {
	return &SessionResult{Set: r.SetIndex, Value: r.Value, TwoD: r.TwoD}
}
