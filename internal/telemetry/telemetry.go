package telemetry

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Reading is the most recent observation reported by a station.
type Reading struct {
	StationID  string
	LevelM     decimal.Decimal
	FlowM3S    decimal.Decimal
	RecordedAt time.Time
}

// PeriodAverage summarises the level over a user-selected date range.
type PeriodAverage struct {
	StationID string
	StartDate string
	EndDate   string
	AvgLevelM decimal.Decimal
	MaxLevelM decimal.Decimal
	MinLevelM decimal.Decimal
	Samples   int
}

// DailyPoint is one day in the recent daily level series.
type DailyPoint struct {
	Date      string
	AvgLevelM decimal.Decimal
	MaxLevelM decimal.Decimal
	MinLevelM decimal.Decimal
}

// MonthlyPoint is one month in a year's monthly level series.
type MonthlyPoint struct {
	Year      string
	Month     int
	AvgLevelM decimal.Decimal
	MaxLevelM decimal.Decimal
	MinLevelM decimal.Decimal
}

// ForecastPoint is one predicted day of the level forecast.
type ForecastPoint struct {
	Date       string
	LevelM     decimal.Decimal
	Confidence decimal.Decimal
}

// DayKey renders t as the upstream's loose calendar-day label.
// Note the month here is NOT shifted; the range endpoints built by the
// dashboard layer carry a month offset by one. The upstream API accepts
// both forms and the mismatch ships as-is until the API team rules on it.
func DayKey(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month()), t.Day())
}
