package dashboard

import (
	"testing"
	"time"
)

func TestBuildParamsDefaultsToToday(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 4, 5, 0, time.UTC)

	p := BuildParams(time.Time{}, time.Time{}, now)

	if p.StartDate != "2024-4-10" || p.EndDate != "2024-4-10" {
		t.Fatalf("默认范围应为当天: %+v", p)
	}
	if p.Year != "2024" {
		t.Fatalf("year 应为 2024, 实际 %s", p.Year)
	}
}

func TestBuildParamsMonthOffset(t *testing.T) {
	start := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	p := BuildParams(start, end, now)

	if p.StartDate != "2024-4-10" {
		t.Fatalf("startDate 应保留月份偏移: %s", p.StartDate)
	}
	if p.EndDate != "2024-4-12" {
		t.Fatalf("endDate 应保留月份偏移: %s", p.EndDate)
	}
	if p.Year != "2024" {
		t.Fatalf("year 应取自 start: %s", p.Year)
	}
}

func TestBuildParamsYearFallsBackToNow(t *testing.T) {
	end := time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

	p := BuildParams(time.Time{}, end, now)

	if p.Year != "2025" {
		t.Fatalf("start 未设置时 year 应取当前年份: %s", p.Year)
	}
	if p.StartDate != "2025-7-2" {
		t.Fatalf("start 未设置时应默认为当天: %s", p.StartDate)
	}
}

func TestRangeKeyDistinguishesRanges(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	a := BuildParams(now, now.AddDate(0, 0, 2), now)
	b := BuildParams(now, now.AddDate(0, 0, 3), now)

	if a.RangeKey() == b.RangeKey() {
		t.Fatalf("不同范围的 key 不应相同: %s", a.RangeKey())
	}
}
