package fetcher

import (
	"context"

	"hydrowatch/internal/telemetry"
)

// StationReader retrieves the five dashboard datasets from the station
// telemetry API.
type StationReader interface {
	FetchLatest(ctx context.Context) (telemetry.Reading, error)
	FetchAverage(ctx context.Context, startDate, endDate string) (telemetry.PeriodAverage, error)
	FetchDaily(ctx context.Context) ([]telemetry.DailyPoint, error)
	FetchMonthly(ctx context.Context, year string) ([]telemetry.MonthlyPoint, error)
	FetchForecast(ctx context.Context) ([]telemetry.ForecastPoint, error)
}
