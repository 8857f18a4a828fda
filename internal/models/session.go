package models

import "fmt"

// Session identifies one of the fixed daily draw times (Asia/Yangon clock).
type Session string

const (
	S1100 Session = "11:00"
	S1201 Session = "12:01"
	S1500 Session = "15:00"
	S1630 Session = "16:30"
)

// AllSessions lists the session slots in chronological order.
var AllSessions = []Session{S1100, S1201, S1500, S1630}

// ParseSession converts a "HH:MM" label into a Session.
func ParseSession(s string) (Session, error) {
	for _, sess := range AllSessions {
		if string(sess) == s {
			return sess, nil
		}
	}
	return "", fmt.Errorf("unknown session %q", s)
}

// Clock returns the hour and minute of the session.
func (s Session) Clock() (hour, minute int) {
	switch s {
	case S1100:
		return 11, 0
	case S1201:
		return 12, 1
	case S1500:
		return 15, 0
	case S1630:
		return 16, 30
	}
	return 0, 0
}

// Key returns the storage/feed field name of the session ("s12_01").
func (s Session) Key() string {
	switch s {
	case S1100:
		return "s11_00"
	case S1201:
		return "s12_01"
	case S1500:
		return "s15_00"
	case S1630:
		return "s16_30"
	}
	return ""
}
