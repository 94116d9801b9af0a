package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp accepts either an RFC 3339 string or epoch milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", raw, err)
		}
		t.Time = parsed
		return nil
	}
	var millis int64
	if err := json.Unmarshal(data, &millis); err != nil {
		return fmt.Errorf("parse timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(millis)
	return nil
}

// ShowtimePayload is the wire shape of a showtime from the schedule API.
type ShowtimePayload struct {
	UID         string    `json:"uid,omitempty"`
	Title       string    `json:"title"`
	StartTime   Timestamp `json:"startTime"`
	EndTime     Timestamp `json:"endTime"`
	Auditorium  int       `json:"auditorium"`
	Description string    `json:"description"`
}

// ToShowtime converts the payload and validates the result.
func (p ShowtimePayload) ToShowtime() (Showtime, error) {
	s := Showtime{
		UID:         p.UID,
		Title:       p.Title,
		StartTime:   p.StartTime.Time,
		EndTime:     p.EndTime.Time,
		Auditorium:  p.Auditorium,
		Description: p.Description,
	}
	if err := s.Validate(); err != nil {
		return Showtime{}, err
	}
	return s, nil
}
