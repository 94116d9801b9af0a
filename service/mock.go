package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"usher-schedule/config"
	"usher-schedule/model"
)

type cannedShowtime struct {
	uid         string
	title       string
	startOffset time.Duration
	endOffset   time.Duration
	auditorium  int
	description string
}

// Offsets are relative to the moment of the fetch so the demo schedule always
// has finished, playing and pending screenings.
var cannedShowtimes = []cannedShowtime{
	{uid: "mock-1", title: "goog morning", startOffset: -590 * time.Minute, endOffset: -563 * time.Minute, auditorium: 1},
	{uid: "mock-2", title: "What where am I", startOffset: -300 * time.Minute, endOffset: -100 * time.Minute, auditorium: 8},
	{uid: "mock-3", title: "Matrix 8", startOffset: -35 * time.Minute, endOffset: 79 * time.Minute, auditorium: 7},
	{uid: "mock-4", title: "Why North Korea is Great", startOffset: -14 * time.Minute, endOffset: 123 * time.Minute, auditorium: 12, description: "hallo eviryone north korea"},
	{uid: "mock-5", title: "Crasy: Loco", startOffset: 7 * time.Minute, endOffset: 140 * time.Minute, auditorium: 4},
	{uid: "mock-6", title: "Matrix 8", startOffset: 109 * time.Minute, endOffset: 253 * time.Minute, auditorium: 7},
	{uid: "mock-7", title: "Aliens with lazerz", startOffset: 450 * time.Minute, endOffset: 599 * time.Minute, auditorium: 3, description: "these aliens got big laserz mann"},
}

// MockFetcher serves a fixed demo schedule without any network I/O.
type MockFetcher struct {
	Now   func() time.Time
	Delay time.Duration
	Err   error
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{Now: time.Now}
}

func (f *MockFetcher) FetchShowtimes(ctx context.Context) ([]model.Showtime, error) {
	if f.Delay > 0 {
		timer := time.NewTimer(f.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, networkError("mock", ctx.Err())
		case <-timer.C:
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}

	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	now = now.Truncate(time.Minute)

	showtimes := make([]model.Showtime, 0, len(cannedShowtimes))
	for _, c := range cannedShowtimes {
		s := model.Showtime{
			UID:         c.uid,
			Title:       c.title,
			StartTime:   now.Add(c.startOffset),
			EndTime:     now.Add(c.endOffset),
			Auditorium:  c.auditorium,
			Description: c.description,
		}
		if err := s.Validate(); err != nil {
			return nil, &APIError{Kind: ProblemBadData, Endpoint: "mock", Err: err}
		}
		showtimes = append(showtimes, s)
	}
	return showtimes, nil
}

// NewFetcher returns the mock schedule unless an API URL is configured.
func NewFetcher(cfg config.Config, logger *slog.Logger) (Fetcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.UseMock() {
		logger.Info("using mock schedule")
		return NewMockFetcher(), nil
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("api url is required")
	}

	client := NewClient(cfg.APIURL, &http.Client{})
	client.apiKey = cfg.APIKey
	if cfg.Timeout > 0 {
		client.timeout = cfg.Timeout
	}
	if cfg.MaxAttempts > 0 {
		client.maxAttempts = cfg.MaxAttempts
	}
	client.logger = logger
	logger.Info("using schedule api", "url", cfg.APIURL)
	return client, nil
}
