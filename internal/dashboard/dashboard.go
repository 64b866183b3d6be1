// Package dashboard holds the fetch/cache decision engine behind the
// station dashboard: which of the five remote datasets must be re-fetched
// on a given refresh, which cached values still stand, and how results
// settle into shared state as the fetches land.
package dashboard

import (
	"context"
	"time"

	"hydrowatch/internal/telemetry"
)

// DatasetName identifies one of the five remote-backed dashboard datasets.
type DatasetName string

const (
	DatasetLatest   DatasetName = "latest_reading"
	DatasetAverage  DatasetName = "period_average"
	DatasetDaily    DatasetName = "daily_series"
	DatasetMonthly  DatasetName = "monthly_series"
	DatasetForecast DatasetName = "forecast_series"
)

// DateRange is the user-selected window for range-dependent datasets.
// Zero times mean "unset" and default to the current day. Start <= End is
// not checked here; an inverted range is the upstream API's to reject.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LoadingFlags lets the caller suppress individual fetches it knows are
// already covered. A nil field means "needs fetch"; only an explicit
// false suppresses. The period average has no flag because it can never
// be suppressed.
type LoadingFlags struct {
	NeedsLastData     *bool
	NeedsDailyData    *bool
	NeedsMonthlyData  *bool
	NeedsForecastData *bool
}

func needsFetch(flag *bool) bool {
	return flag == nil || *flag
}

// Bool returns a pointer suitable for a LoadingFlags field.
func Bool(v bool) *bool {
	return &v
}

// Source provides the five remote dataset operations the orchestrator
// dispatches. internal/fetcher carries the HTTP implementation.
type Source interface {
	FetchLatest(ctx context.Context) (telemetry.Reading, error)
	FetchAverage(ctx context.Context, startDate, endDate string) (telemetry.PeriodAverage, error)
	FetchDaily(ctx context.Context) ([]telemetry.DailyPoint, error)
	FetchMonthly(ctx context.Context, year string) ([]telemetry.MonthlyPoint, error)
	FetchForecast(ctx context.Context) ([]telemetry.ForecastPoint, error)
}
