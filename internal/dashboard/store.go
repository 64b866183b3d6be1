package dashboard

import (
	"sync"
	"time"

	"hydrowatch/internal/telemetry"
)

// State is a consistent snapshot of one dataset. Err is the message of
// the most recent failed fetch; a failure leaves the previous value in
// place, so HasValue and Err can both be set.
type State[T any] struct {
	Value         T
	HasValue      bool
	Loading       bool
	Err           string
	LastFetchedAt time.Time
	Cache         *CacheEntry
}

// Slot holds one dataset and its cache metadata. Each slot has its own
// lock, so reads never observe a torn mix of fields, and only the
// orchestrator writes to it. The generation counter discards settlements
// from superseded rounds.
type Slot[T any] struct {
	mu     sync.Mutex
	name   DatasetName
	state  State[T]
	gen    uint64
	notify func(DatasetName)
}

// Get returns a snapshot of the slot. The cache entry is copied so the
// caller cannot alias slot-owned state.
func (s *Slot[T]) Get() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state
	if s.state.Cache != nil {
		entry := *s.state.Cache
		snap.Cache = &entry
	}
	return snap
}

// DismissError clears only the error message, keeping any cached value.
func (s *Slot[T]) DismissError() {
	s.mu.Lock()
	s.state.Err = ""
	s.mu.Unlock()

	s.notify(s.name)
}

// begin marks the slot loading and opens a new fetch generation. It runs
// synchronously on the dispatching round, before any fetch goroutine can
// settle, so the view layer never sees "not loading, not yet fetched".
func (s *Slot[T]) begin() uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state.Loading = true
	s.mu.Unlock()

	s.notify(s.name)
	return gen
}

// commit lands a successful fetch. A settlement from a superseded
// generation is dropped; the reported false lets the caller log it.
func (s *Slot[T]) commit(gen uint64, value T, entry CacheEntry) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	s.state.Value = value
	s.state.HasValue = true
	s.state.Loading = false
	s.state.Err = ""
	s.state.LastFetchedAt = entry.FetchedAt
	s.state.Cache = &entry
	s.mu.Unlock()

	s.notify(s.name)
	return true
}

// fail lands a failed fetch: loading clears, the message is recorded,
// and any previous value stays displayable.
func (s *Slot[T]) fail(gen uint64, msg string) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	s.state.Loading = false
	s.state.Err = msg
	s.mu.Unlock()

	s.notify(s.name)
	return true
}

func (s *Slot[T]) reset() {
	s.mu.Lock()
	s.gen++
	s.state = State[T]{}
	s.mu.Unlock()

	s.notify(s.name)
}

// Store holds the five dashboard datasets. It is the only shared mutable
// structure between the orchestrator and the view layer; there is no
// ambient global, callers pass the store explicitly.
type Store struct {
	Latest   Slot[telemetry.Reading]
	Average  Slot[telemetry.PeriodAverage]
	Daily    Slot[[]telemetry.DailyPoint]
	Monthly  Slot[[]telemetry.MonthlyPoint]
	Forecast Slot[[]telemetry.ForecastPoint]

	mu   sync.Mutex
	subs []func(DatasetName)
}

// NewStore returns an empty store: nothing loading, nothing fetched.
func NewStore() *Store {
	s := &Store{}
	s.Latest.name = DatasetLatest
	s.Average.name = DatasetAverage
	s.Daily.name = DatasetDaily
	s.Monthly.name = DatasetMonthly
	s.Forecast.name = DatasetForecast

	s.Latest.notify = s.publish
	s.Average.notify = s.publish
	s.Daily.notify = s.publish
	s.Monthly.notify = s.publish
	s.Forecast.notify = s.publish
	return s
}

// Subscribe registers fn to run after every dataset transition. fn is
// called outside slot locks and may read the store.
func (s *Store) Subscribe(fn func(DatasetName)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) publish(name DatasetName) {
	s.mu.Lock()
	subs := make([]func(DatasetName), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(name)
	}
}

// Reset clears all five datasets to their initial state. Invoked on
// logout; also bumps generations so in-flight fetches land nowhere.
func (s *Store) Reset() {
	s.Latest.reset()
	s.Average.reset()
	s.Daily.reset()
	s.Monthly.reset()
	s.Forecast.reset()
}

// ForecastCacheValid reports whether the forecast's cached value is
// still within its horizon. The view layer reads this to enable or
// disable the manual forecast refresh control.
func (s *Store) ForecastCacheValid(now time.Time) bool {
	return IsFresh(s.Forecast.Get().Cache, "", now)
}
