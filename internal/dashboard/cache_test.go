package dashboard

import (
	"testing"
	"time"

	"hydrowatch/internal/telemetry"
)

func TestIsFreshNilEntry(t *testing.T) {
	if IsFresh(nil, "", time.Now()) {
		t.Fatal("nil entry 不应视为新鲜")
	}
}

func TestIsFreshExpired(t *testing.T) {
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	entry := &CacheEntry{FetchedAt: now.Add(-2 * time.Minute), ExpiresAt: now, Key: ""}

	// Exactly at the horizon counts as expired.
	if IsFresh(entry, "", now) {
		t.Fatal("到达过期时间应视为过期")
	}
	if IsFresh(entry, "", now.Add(time.Second)) {
		t.Fatal("超过过期时间应视为过期")
	}
	if !IsFresh(entry, "", now.Add(-time.Second)) {
		t.Fatal("过期前应视为新鲜")
	}
}

func TestIsFreshKeyMismatch(t *testing.T) {
	now := time.Now()
	entry := &CacheEntry{FetchedAt: now, ExpiresAt: now.Add(time.Hour), Key: "2024"}

	if IsFresh(entry, "2025", now) {
		t.Fatal("key 不同应强制重新拉取")
	}
	if !IsFresh(entry, "2024", now) {
		t.Fatal("key 相同且未过期应视为新鲜")
	}
}

func TestEvaluateFlagsEmptyStore(t *testing.T) {
	s := NewStore()
	p := BuildParams(time.Time{}, time.Time{}, time.Now())

	flags := s.EvaluateFlags(p, time.Now())

	if flags.NeedsLastData != nil || flags.NeedsDailyData != nil ||
		flags.NeedsMonthlyData != nil || flags.NeedsForecastData != nil {
		t.Fatalf("空 store 所有数据集都需要拉取: %+v", flags)
	}
}

func TestEvaluateFlagsFreshDatasetsSuppressed(t *testing.T) {
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()
	p := BuildParams(now, now, now)

	fresh := func(key string) CacheEntry {
		return CacheEntry{FetchedAt: now, ExpiresAt: now.Add(time.Hour), Key: key}
	}
	s.Latest.commit(s.Latest.begin(), telemetry.Reading{StationID: "rio-negro-01"}, fresh(""))
	s.Daily.commit(s.Daily.begin(), nil, fresh(""))
	s.Monthly.commit(s.Monthly.begin(), nil, fresh(p.Year))
	s.Forecast.commit(s.Forecast.begin(), nil, fresh(""))

	flags := s.EvaluateFlags(p, now)

	for name, flag := range map[string]*bool{
		"last":     flags.NeedsLastData,
		"daily":    flags.NeedsDailyData,
		"monthly":  flags.NeedsMonthlyData,
		"forecast": flags.NeedsForecastData,
	} {
		if flag == nil || *flag {
			t.Fatalf("%s 缓存新鲜时应显式置 false", name)
		}
	}
}

func TestEvaluateFlagsMonthlyYearChange(t *testing.T) {
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore()

	s.Monthly.commit(s.Monthly.begin(), nil, CacheEntry{FetchedAt: now, ExpiresAt: now.Add(time.Hour), Key: "2023"})

	p := BuildParams(now, now, now) // year 2024
	flags := s.EvaluateFlags(p, now)

	if flags.NeedsMonthlyData != nil {
		t.Fatal("切换年份后 monthly 必须重新拉取")
	}
}
