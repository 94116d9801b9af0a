package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"usher-schedule/config"
)

const schedulePayload = `[
  {"uid": "s1", "title": "Matrix 8", "startTime": "2026-03-14T18:00:00Z", "endTime": "2026-03-14T19:54:00Z", "auditorium": 7},
  {"uid": "s2", "title": "Crasy: Loco", "startTime": "2026-03-14T18:07:00Z", "endTime": "2026-03-14T20:20:00Z", "auditorium": 4, "description": ""}
]`

func newTestClient(server *httptest.Server) *Client {
	client := NewClient(server.URL, server.Client())
	client.retryBase = time.Millisecond
	client.retryCap = 2 * time.Millisecond
	return client
}

func TestFetchShowtimes_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/showtimes" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Fatalf("unexpected accept header: %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Fatalf("unexpected authorization header: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(schedulePayload))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.apiKey = "key"

	showtimes, err := client.FetchShowtimes(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(showtimes) != 2 {
		t.Fatalf("expected 2 showtimes, got %d", len(showtimes))
	}
	if showtimes[0].UID != "s1" || showtimes[1].Title != "Crasy: Loco" {
		t.Fatalf("unexpected showtimes: %+v", showtimes)
	}
}

func TestFetchShowtimes_InvalidEntryIsBadData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
  {"uid": "s1", "title": "Matrix 8", "startTime": "2026-03-14T18:00:00Z", "endTime": "2026-03-14T19:54:00Z", "auditorium": 7},
  {"uid": "s2", "title": "Backwards", "startTime": "2026-03-14T18:00:00Z", "endTime": "2026-03-14T17:00:00Z", "auditorium": 4}
]`))
	}))
	defer server.Close()

	showtimes, err := newTestClient(server).FetchShowtimes(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if showtimes != nil {
		t.Fatalf("expected no partial result, got %+v", showtimes)
	}
	if kind := KindOf(err); kind != ProblemBadData {
		t.Fatalf("expected bad-data, got %s", kind)
	}
}

func TestFetchShowtimes_MalformedJSONIsBadData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"showtimes": `))
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchShowtimes(context.Background())
	if kind := KindOf(err); kind != ProblemBadData {
		t.Fatalf("expected bad-data, got %s (%v)", kind, err)
	}
}

func TestFetchShowtimes_EmptyAndNullBodies(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "empty body", body: "", wantErr: true},
		{name: "null", body: "null", wantErr: true},
		{name: "empty list", body: "[]", wantErr: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			showtimes, err := newTestClient(server).FetchShowtimes(context.Background())
			if tc.wantErr {
				if kind := KindOf(err); kind != ProblemBadData {
					t.Fatalf("expected bad-data, got %s (%v)", kind, err)
				}
				if showtimes != nil {
					t.Fatalf("expected no showtimes, got %v", showtimes)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if showtimes == nil || len(showtimes) != 0 {
				t.Fatalf("expected an empty schedule, got %#v", showtimes)
			}
		})
	}
}

func TestFetchShowtimes_StatusKinds(t *testing.T) {
	tests := []struct {
		status int
		want   ProblemKind
	}{
		{status: http.StatusUnauthorized, want: ProblemUnauthorized},
		{status: http.StatusForbidden, want: ProblemForbidden},
		{status: http.StatusNotFound, want: ProblemNotFound},
		{status: http.StatusUnprocessableEntity, want: ProblemRejected},
		{status: http.StatusBadGateway, want: ProblemServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer server.Close()

			client := newTestClient(server)
			client.maxAttempts = 1

			_, err := client.FetchShowtimes(context.Background())
			if kind := KindOf(err); kind != tt.want {
				t.Fatalf("expected %s, got %s (%v)", tt.want, kind, err)
			}
			if !strings.Contains(err.Error(), "nope") {
				t.Fatalf("expected body in error, got %v", err)
			}
		})
	}
}

func TestGetJSON_RetriesTransientServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&attempts, 1)
		if current < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("retry later"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(schedulePayload))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.maxAttempts = 3

	showtimes, err := client.FetchShowtimes(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(showtimes) != 2 {
		t.Fatalf("expected 2 showtimes, got %d", len(showtimes))
	}
}

func TestGetJSON_DoesNotRetryOnClientErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer server.Close()

	client := newTestClient(server)
	client.maxAttempts = 3

	_, err := client.FetchShowtimes(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestFetchShowtimes_TimeoutKind(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server)
	client.timeout = 20 * time.Millisecond
	client.maxAttempts = 1

	_, err := client.FetchShowtimes(context.Background())
	if kind := KindOf(err); kind != ProblemTimeout {
		t.Fatalf("expected timeout, got %s (%v)", kind, err)
	}
}

func TestFetchShowtimes_CannotConnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, nil)
	client.maxAttempts = 1

	_, err := client.FetchShowtimes(context.Background())
	if kind := KindOf(err); kind != ProblemCannotConnect {
		t.Fatalf("expected cannot-connect, got %s (%v)", kind, err)
	}
}

func TestRetryDelay_Capped(t *testing.T) {
	client := NewClient("http://example.invalid", nil)
	if got := client.retryDelay(1); got != defaultRetryBase {
		t.Fatalf("expected base delay, got %s", got)
	}
	if got := client.retryDelay(10); got != defaultRetryCap {
		t.Fatalf("expected capped delay, got %s", got)
	}
}

func TestProblemKind_Strings(t *testing.T) {
	want := map[ProblemKind]string{
		ProblemBadData:       "bad-data",
		ProblemTimeout:       "timeout",
		ProblemCannotConnect: "cannot-connect",
		ProblemUnauthorized:  "unauthorized",
		ProblemForbidden:     "forbidden",
		ProblemNotFound:      "not-found",
		ProblemRejected:      "rejected",
		ProblemServer:        "server",
		ProblemUnknown:       "unknown",
	}
	for kind, name := range want {
		if kind.String() != name {
			t.Fatalf("expected %q, got %q", name, kind.String())
		}
	}
}

func TestProblemKind_Temporary(t *testing.T) {
	temporary := map[ProblemKind]bool{
		ProblemTimeout:       true,
		ProblemCannotConnect: true,
		ProblemServer:        true,
		ProblemUnknown:       true,
		ProblemBadData:       false,
		ProblemUnauthorized:  false,
		ProblemForbidden:     false,
		ProblemNotFound:      false,
		ProblemRejected:      false,
	}
	for kind, want := range temporary {
		if got := kind.Temporary(); got != want {
			t.Fatalf("%s: expected temporary=%v, got %v", kind, want, got)
		}
	}
}

func TestKindOf_WrappedAndForeignErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &APIError{Kind: ProblemNotFound, StatusCode: 404})
	if !IsNotFound(wrapped) {
		t.Fatalf("expected wrapped not-found, got %s", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != ProblemUnknown {
		t.Fatal("expected unknown for foreign error")
	}
	if IsNotFound(nil) {
		t.Fatal("expected nil error not to be not-found")
	}
}

func TestMockFetcher_CannedSchedule(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 30, 0, time.UTC)
	fetcher := &MockFetcher{Now: func() time.Time { return now }}

	first, err := fetcher.FetchShowtimes(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(first) != 7 {
		t.Fatalf("expected 7 showtimes, got %d", len(first))
	}
	if first[2].Title != "Matrix 8" || first[2].Auditorium != 7 {
		t.Fatalf("unexpected third showtime: %+v", first[2])
	}
	if !first[4].StartTime.Equal(time.Date(2026, 3, 14, 18, 7, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start for Crasy: Loco: %v", first[4].StartTime)
	}

	first[0].Title = "mutated"
	second, err := fetcher.FetchShowtimes(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if second[0].Title != "goog morning" {
		t.Fatalf("expected a fresh snapshot, got %q", second[0].Title)
	}
	if second[0].UID != first[0].UID {
		t.Fatal("expected stable uids across fetches")
	}
}

func TestMockFetcher_ErrorAndCancel(t *testing.T) {
	fetcher := &MockFetcher{Err: &APIError{Kind: ProblemForbidden}}
	if _, err := fetcher.FetchShowtimes(context.Background()); KindOf(err) != ProblemForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	slow := &MockFetcher{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := slow.FetchShowtimes(ctx); KindOf(err) != ProblemTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestNewFetcher(t *testing.T) {
	fetcher, err := NewFetcher(config.Default(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, ok := fetcher.(*MockFetcher); !ok {
		t.Fatalf("expected mock fetcher, got %T", fetcher)
	}

	cfg := config.Default()
	cfg.APIURL = "https://schedule.example.com"
	cfg.APIKey = "key"
	cfg.MaxAttempts = 2
	fetcher, err = NewFetcher(cfg, nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	client, ok := fetcher.(*Client)
	if !ok {
		t.Fatalf("expected http client, got %T", fetcher)
	}
	if client.apiKey != "key" || client.maxAttempts != 2 || client.baseURL != cfg.APIURL {
		t.Fatalf("unexpected client config: %+v", client)
	}
}
