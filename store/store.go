package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"usher-schedule/model"
	"usher-schedule/service"
)

var (
	ErrDuplicateUID = errors.New("duplicate showtime uid")
	ErrSuperseded   = errors.New("refresh superseded by a newer one")
)

// ShowtimeStore holds the current showtime snapshot together with the
// user's view settings and crossed-off marks. It is safe for concurrent use.
type ShowtimeStore struct {
	mu sync.RWMutex

	showtimes  []model.Showtime
	index      map[string]int
	crossedOff map[string]struct{}

	sortMode     SortMode
	upcomingOnly bool

	lastErr     error
	lastRefresh time.Time

	generation  uint64
	cancelFetch context.CancelFunc

	logger *slog.Logger
	now    func() time.Time
}

type Option func(*ShowtimeStore)

func WithLogger(logger *slog.Logger) Option {
	return func(s *ShowtimeStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ShowtimeStore) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *ShowtimeStore {
	s := &ShowtimeStore{
		index:      map[string]int{},
		crossedOff: map[string]struct{}{},
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReplaceAll swaps in a new snapshot. The batch is applied whole or not at
// all; crossed-off marks for showtimes missing from it are dropped.
func (s *ShowtimeStore) ReplaceAll(showtimes []model.Showtime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(showtimes)
}

func (s *ShowtimeStore) replaceLocked(showtimes []model.Showtime) error {
	if err := model.ValidateAll(showtimes); err != nil {
		return err
	}

	next := make([]model.Showtime, len(showtimes))
	index := make(map[string]int, len(showtimes))
	for i, st := range showtimes {
		st = st.EnsureUID()
		if prev, ok := index[st.UID]; ok {
			return fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateUID, st.UID, prev, i)
		}
		index[st.UID] = i
		next[i] = st
	}

	pruned := 0
	for uid := range s.crossedOff {
		if _, ok := index[uid]; !ok {
			delete(s.crossedOff, uid)
			pruned++
		}
	}

	s.showtimes = next
	s.index = index
	s.logger.Debug("replaced showtimes", "count", len(next), "pruned_crossed_off", pruned)
	return nil
}

// Showtimes returns a copy of the snapshot in its original order.
func (s *ShowtimeStore) Showtimes() []model.Showtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.showtimes)
}

func (s *ShowtimeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.showtimes)
}

func (s *ShowtimeStore) Get(uid string) (model.Showtime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[uid]
	if !ok {
		return model.Showtime{}, false
	}
	return s.showtimes[i], true
}

// Visible yields the list the schedule screen shows at now. Nothing is
// computed until the sequence is ranged over, and every range sees the
// store's state at that moment.
func (s *ShowtimeStore) Visible(now time.Time) iter.Seq[model.Showtime] {
	return func(yield func(model.Showtime) bool) {
		for _, st := range s.VisibleList(now) {
			if !yield(st) {
				return
			}
		}
	}
}

// VisibleList filters out finished showtimes when upcoming-only is on and
// then sorts by the current mode.
func (s *ShowtimeStore) VisibleList(now time.Time) []model.Showtime {
	s.mu.RLock()
	list := slices.Clone(s.showtimes)
	mode := s.sortMode
	upcomingOnly := s.upcomingOnly
	s.mu.RUnlock()

	if upcomingOnly {
		list = slices.DeleteFunc(list, func(st model.Showtime) bool {
			return st.Finished(now)
		})
	}
	sortShowtimes(list, mode)
	return list
}

// Upcoming returns up to n showtimes that have not started yet, soonest first.
func (s *ShowtimeStore) Upcoming(now time.Time, n int) []model.Showtime {
	if n <= 0 {
		return nil
	}
	s.mu.RLock()
	list := slices.Clone(s.showtimes)
	s.mu.RUnlock()

	list = slices.DeleteFunc(list, func(st model.Showtime) bool {
		return st.Started(now)
	})
	sortShowtimes(list, SortByStart)
	if len(list) > n {
		list = list[:n]
	}
	return list
}

// ToggleCrossedOff flips the mark on the showtime and returns the new state.
// Unknown uids are ignored.
func (s *ShowtimeStore) ToggleCrossedOff(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[uid]; !ok {
		return false
	}
	if _, ok := s.crossedOff[uid]; ok {
		delete(s.crossedOff, uid)
		return false
	}
	s.crossedOff[uid] = struct{}{}
	return true
}

func (s *ShowtimeStore) IsCrossedOff(uid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.crossedOff[uid]
	return ok
}

func (s *ShowtimeStore) CrossedOffCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.crossedOff)
}

func (s *ShowtimeStore) SortMode() SortMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortMode
}

func (s *ShowtimeStore) SetSortMode(mode SortMode) error {
	if !mode.valid() {
		return fmt.Errorf("invalid sort mode %d", int(mode))
	}
	s.mu.Lock()
	s.sortMode = mode
	s.mu.Unlock()
	return nil
}

// CycleSortMode advances start → end → title → start.
func (s *ShowtimeStore) CycleSortMode() SortMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortMode = s.sortMode.Next()
	return s.sortMode
}

func (s *ShowtimeStore) UpcomingOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upcomingOnly
}

func (s *ShowtimeStore) SetUpcomingOnly(on bool) {
	s.mu.Lock()
	s.upcomingOnly = on
	s.mu.Unlock()
}

func (s *ShowtimeStore) ToggleUpcomingOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upcomingOnly = !s.upcomingOnly
	return s.upcomingOnly
}

// LastError is the error of the most recent refresh, or nil once a refresh
// succeeded.
func (s *ShowtimeStore) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *ShowtimeStore) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// Refresh fetches a new snapshot and applies it. Starting a refresh cancels
// any refresh still in flight, and a refresh that was overtaken returns
// ErrSuperseded without touching the store. On failure the previous
// snapshot stays in place and the error is kept for LastError.
func (s *ShowtimeStore) Refresh(ctx context.Context, fetcher service.Fetcher) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.cancelFetch = cancel
	s.mu.Unlock()

	showtimes, err := fetcher.FetchShowtimes(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("discarding superseded refresh", "generation", gen)
		return ErrSuperseded
	}
	s.cancelFetch = nil

	if err != nil {
		s.lastErr = err
		s.logger.Error("refresh showtimes", "kind", service.KindOf(err).String(), "err", err)
		return err
	}
	if err := s.replaceLocked(showtimes); err != nil {
		apiErr := &service.APIError{Kind: service.ProblemBadData, Err: err}
		s.lastErr = apiErr
		s.logger.Error("refresh showtimes", "kind", apiErr.Kind.String(), "err", err)
		return apiErr
	}
	s.lastErr = nil
	s.lastRefresh = s.now()
	s.logger.Info("refreshed showtimes", "count", len(s.showtimes))
	return nil
}
