package dashboard

import "time"

// TTLs per dataset. These are added to the fetch time when stamping a
// CacheEntry to compute expires_at.
const (
	// Live data.
	TTLLatest = 1 * time.Minute // station gauges report about once a minute

	// Aggregates recomputed upstream on a slow cadence.
	TTLDaily    = 5 * time.Minute
	TTLForecast = 15 * time.Minute // forecast model reruns every quarter hour
	TTLMonthly  = 1 * time.Hour    // keyed by year as well; stale only across TTL or year change

	// The period average is keyed by the exact range pair, so any new
	// range misses regardless of age. The TTL only matters for repeat
	// loads of the identical range.
	TTLAverage = 1 * time.Minute
)

// TTLSet carries the per-dataset expiry horizons. Config may override the
// defaults; zero fields fall back to the constants above.
type TTLSet struct {
	Latest   time.Duration
	Average  time.Duration
	Daily    time.Duration
	Monthly  time.Duration
	Forecast time.Duration
}

// DefaultTTLs returns the built-in horizons.
func DefaultTTLs() TTLSet {
	return TTLSet{
		Latest:   TTLLatest,
		Average:  TTLAverage,
		Daily:    TTLDaily,
		Monthly:  TTLMonthly,
		Forecast: TTLForecast,
	}
}

func (t TTLSet) normalized() TTLSet {
	d := DefaultTTLs()
	if t.Latest <= 0 {
		t.Latest = d.Latest
	}
	if t.Average <= 0 {
		t.Average = d.Average
	}
	if t.Daily <= 0 {
		t.Daily = d.Daily
	}
	if t.Monthly <= 0 {
		t.Monthly = d.Monthly
	}
	if t.Forecast <= 0 {
		t.Forecast = d.Forecast
	}
	return t
}

// CacheEntry records when a dataset value was fetched, when it lapses,
// and the parameter key it was fetched under. Owned by its dataset slot;
// restamped on every successful fetch.
type CacheEntry struct {
	FetchedAt time.Time
	ExpiresAt time.Time
	Key       string
}

// IsFresh reports whether a cached value may still be served for the
// requested key: false when there is no entry, the entry was fetched
// under a different key, or the horizon has passed.
func IsFresh(entry *CacheEntry, requestedKey string, now time.Time) bool {
	if entry == nil {
		return false
	}
	if entry.Key != requestedKey {
		return false
	}
	return now.Before(entry.ExpiresAt)
}

// EvaluateFlags derives the per-call loading flags from current cache
// state: a dataset that is still fresh for the requested parameters gets
// an explicit false, everything else is left nil (needs fetch). The
// period average never produces a flag; it is re-fetched every round.
func (s *Store) EvaluateFlags(p Params, now time.Time) LoadingFlags {
	flags := LoadingFlags{}
	if IsFresh(s.Latest.Get().Cache, "", now) {
		flags.NeedsLastData = Bool(false)
	}
	if IsFresh(s.Daily.Get().Cache, "", now) {
		flags.NeedsDailyData = Bool(false)
	}
	if IsFresh(s.Monthly.Get().Cache, p.Year, now) {
		flags.NeedsMonthlyData = Bool(false)
	}
	if IsFresh(s.Forecast.Get().Cache, "", now) {
		flags.NeedsForecastData = Bool(false)
	}
	return flags
}
