package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Showtime is one scheduled screening. Values are treated as immutable once
// they enter a store snapshot.
type Showtime struct {
	UID         string    `json:"uid"`
	Title       string    `json:"title" validate:"required"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	Auditorium  int       `json:"auditorium" validate:"gt=0"`
	Description string    `json:"description"`
}

// EnsureUID returns a copy of s with a random UID when it has none.
func (s Showtime) EnsureUID() Showtime {
	if s.UID == "" {
		s.UID = uuid.NewString()
	}
	return s
}

func (s Showtime) StartString() string {
	return FormatClock(s.StartTime)
}

func (s Showtime) EndString() string {
	return FormatClock(s.EndTime)
}

func (s Showtime) AuditoriumLabel() string {
	return fmt.Sprintf("Auditorium %d", s.Auditorium)
}

// Duration renders the running time as HH:MM. A span that ends before it
// starts renders as "--:--".
func (s Showtime) Duration() string {
	span := s.EndTime.Sub(s.StartTime)
	if span < 0 {
		return "--:--"
	}
	h, m := hoursMinutes(span)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// TimeStatus counts down to the start while the showtime is pending and to
// the end while it is playing.
func (s Showtime) TimeStatus(now time.Time) string {
	prefix := "in"
	remaining := s.StartTime.Sub(now)
	if !s.StartTime.After(now) {
		prefix = "ends in"
		remaining = s.EndTime.Sub(now)
	}
	if remaining < 0 {
		return "completed"
	}
	h, m := hoursMinutes(remaining)
	return fmt.Sprintf("%s %02dh:%02dm", prefix, h, m)
}

func (s Showtime) Started(now time.Time) bool {
	return !s.StartTime.After(now)
}

func (s Showtime) Finished(now time.Time) bool {
	return !s.EndTime.After(now)
}

// FormatClock renders t as a 12-hour clock time such as "07:05pm".
func FormatClock(t time.Time) string {
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	suffix := "am"
	if t.Hour() >= 12 {
		suffix = "pm"
	}
	return fmt.Sprintf("%02d:%02d%s", hour, t.Minute(), suffix)
}

func hoursMinutes(d time.Duration) (int, int) {
	seconds := int64(d / time.Second)
	return int(seconds / 3600), int((seconds % 3600) / 60)
}
