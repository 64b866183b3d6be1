package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hydrowatch/internal/telemetry"
)

// Orchestrator decides which datasets to fetch on a refresh and settles
// the results into the store. Fetches for different datasets run
// concurrently and settle independently; one failure never aborts a
// sibling. In-flight fetches are not cancelled by a newer round; the
// per-slot generation counter drops whatever lands late.
type Orchestrator struct {
	store  *Store
	source Source
	ttls   TTLSet
	logger zerolog.Logger

	now func() time.Time
	wg  sync.WaitGroup
}

// NewOrchestrator wires the decision engine to a store and a source.
func NewOrchestrator(store *Store, source Source, ttls TTLSet, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		source: source,
		ttls:   ttls.normalized(),
		logger: logger.With().Str("component", "orchestrator").Logger(),
		now:    time.Now,
	}
}

// Load issues one orchestration round for the given range. The period
// average is always fetched; the other four are fetched unless their
// flag is explicitly false. Every issued dataset is marked loading
// before Load returns; results settle asynchronously.
func (o *Orchestrator) Load(ctx context.Context, rng DateRange, flags LoadingFlags) {
	p := BuildParams(rng.Start, rng.End, o.now())

	// Stage first, launch after: all loading flags flip in this
	// synchronous turn before any fetch can settle.
	var launches []func()

	launches = append(launches, stage(o, ctx, &o.store.Average, p.RangeKey(), o.ttls.Average,
		func(ctx context.Context) (telemetry.PeriodAverage, error) {
			return o.source.FetchAverage(ctx, p.StartDate, p.EndDate)
		}))

	if needsFetch(flags.NeedsLastData) {
		launches = append(launches, stage(o, ctx, &o.store.Latest, "", o.ttls.Latest, o.source.FetchLatest))
	}
	if needsFetch(flags.NeedsMonthlyData) {
		launches = append(launches, stage(o, ctx, &o.store.Monthly, p.Year, o.ttls.Monthly,
			func(ctx context.Context) ([]telemetry.MonthlyPoint, error) {
				return o.source.FetchMonthly(ctx, p.Year)
			}))
	}
	if needsFetch(flags.NeedsDailyData) {
		launches = append(launches, stage(o, ctx, &o.store.Daily, "", o.ttls.Daily, o.source.FetchDaily))
	}
	if needsFetch(flags.NeedsForecastData) {
		launches = append(launches, stage(o, ctx, &o.store.Forecast, "", o.ttls.Forecast, o.source.FetchForecast))
	}

	for _, launch := range launches {
		launch()
	}
}

// RefreshAll issues fetches for all five datasets regardless of cache
// state. Used for the explicit user-initiated full refresh; settlement
// semantics match Load.
func (o *Orchestrator) RefreshAll(ctx context.Context, rng DateRange) {
	o.Load(ctx, rng, LoadingFlags{})
}

// Wait blocks until every fetch issued so far has settled. The daemon
// drains rounds with it; tests use it to observe final state.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// stage opens the slot's next generation (marking it loading) and
// returns the closure that launches the fetch goroutine.
func stage[T any](o *Orchestrator, ctx context.Context, slot *Slot[T], key string, ttl time.Duration, fetch func(context.Context) (T, error)) func() {
	gen := slot.begin()

	return func() {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()

			value, err := fetch(ctx)
			if err != nil {
				if !slot.fail(gen, err.Error()) {
					o.logger.Debug().Str("dataset", string(slot.name)).Msg("dropping failure from superseded round")
					return
				}
				o.logger.Warn().Err(err).Str("dataset", string(slot.name)).Msg("fetch failed")
				return
			}

			now := o.now()
			entry := CacheEntry{FetchedAt: now, ExpiresAt: now.Add(ttl), Key: key}
			if !slot.commit(gen, value, entry) {
				o.logger.Debug().Str("dataset", string(slot.name)).Msg("dropping result from superseded round")
			}
		}()
	}
}
