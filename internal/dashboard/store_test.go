package dashboard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hydrowatch/internal/telemetry"
)

func TestSlotCommitAndSnapshot(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

	gen := s.Latest.begin()
	if st := s.Latest.Get(); !st.Loading {
		t.Fatal("begin 后应处于 loading 状态")
	}

	reading := telemetry.Reading{
		StationID:  "rio-negro-01",
		LevelM:     decimal.RequireFromString("3.42"),
		RecordedAt: now,
	}
	if !s.Latest.commit(gen, reading, CacheEntry{FetchedAt: now, ExpiresAt: now.Add(time.Minute)}) {
		t.Fatal("当前代的 commit 不应被丢弃")
	}

	st := s.Latest.Get()
	if st.Loading {
		t.Fatal("commit 后 loading 应清除")
	}
	if !st.HasValue || !st.Value.LevelM.Equal(reading.LevelM) {
		t.Fatalf("快照未反映提交的值: %+v", st)
	}
	if st.Err != "" {
		t.Fatalf("成功应清空错误: %q", st.Err)
	}

	// The snapshot's cache entry is a copy, not an alias.
	st.Cache.Key = "mutated"
	if s.Latest.Get().Cache.Key == "mutated" {
		t.Fatal("快照的 cache entry 不应与 slot 共享")
	}
}

func TestSlotFailKeepsPreviousValue(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.Daily.commit(s.Daily.begin(), []telemetry.DailyPoint{{Date: "2024-05-01"}}, CacheEntry{FetchedAt: now, ExpiresAt: now.Add(time.Minute)})

	gen := s.Daily.begin()
	if !s.Daily.fail(gen, "station api error (503): unavailable") {
		t.Fatal("当前代的 fail 不应被丢弃")
	}

	st := s.Daily.Get()
	if st.Loading {
		t.Fatal("fail 后 loading 应清除")
	}
	if st.Err == "" {
		t.Fatal("fail 应记录错误消息")
	}
	if !st.HasValue || len(st.Value) != 1 {
		t.Fatal("失败不应丢弃上一次成功的值")
	}
}

func TestSlotStaleGenerationDropped(t *testing.T) {
	s := NewStore()
	now := time.Now()

	stale := s.Forecast.begin()
	fresh := s.Forecast.begin() // supersedes the first round

	if s.Forecast.commit(stale, []telemetry.ForecastPoint{{Date: "old"}}, CacheEntry{}) {
		t.Fatal("过期代的 commit 必须被丢弃")
	}
	if s.Forecast.fail(stale, "late failure") {
		t.Fatal("过期代的 fail 必须被丢弃")
	}
	if !s.Forecast.commit(fresh, []telemetry.ForecastPoint{{Date: "new"}}, CacheEntry{FetchedAt: now, ExpiresAt: now.Add(time.Minute)}) {
		t.Fatal("当前代的 commit 不应被丢弃")
	}

	st := s.Forecast.Get()
	if len(st.Value) != 1 || st.Value[0].Date != "new" {
		t.Fatalf("落地的应是最新一轮的值: %+v", st.Value)
	}
}

func TestDismissError(t *testing.T) {
	s := NewStore()

	s.Monthly.fail(s.Monthly.begin(), "boom")
	s.Monthly.DismissError()

	if st := s.Monthly.Get(); st.Err != "" {
		t.Fatalf("DismissError 后错误应清空: %q", st.Err)
	}
}

func TestSubscribeObservesTransitions(t *testing.T) {
	s := NewStore()

	var seen []DatasetName
	s.Subscribe(func(name DatasetName) { seen = append(seen, name) })

	gen := s.Latest.begin()
	s.Latest.commit(gen, telemetry.Reading{}, CacheEntry{})

	if len(seen) != 2 || seen[0] != DatasetLatest || seen[1] != DatasetLatest {
		t.Fatalf("期望 begin 与 commit 各触发一次通知: %v", seen)
	}

	// Subscribers may read the store from inside the callback.
	s.Subscribe(func(DatasetName) { _ = s.Latest.Get() })
	s.Latest.DismissError()
}

func TestResetClearsEverything(t *testing.T) {
	s := NewStore()
	now := time.Now()

	inflight := s.Latest.begin()
	s.Daily.commit(s.Daily.begin(), []telemetry.DailyPoint{{Date: "2024-05-01"}}, CacheEntry{FetchedAt: now, ExpiresAt: now.Add(time.Hour)})

	s.Reset()

	if st := s.Daily.Get(); st.HasValue || st.Loading || st.Cache != nil {
		t.Fatalf("Reset 后 daily 应回到初始状态: %+v", st)
	}
	// An in-flight fetch from before the reset lands nowhere.
	if s.Latest.commit(inflight, telemetry.Reading{StationID: "ghost"}, CacheEntry{}) {
		t.Fatal("Reset 前的在途请求不应落地")
	}
}

func TestForecastCacheValid(t *testing.T) {
	s := NewStore()
	now := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

	if s.ForecastCacheValid(now) {
		t.Fatal("空 store 的 forecast 缓存不应有效")
	}

	s.Forecast.commit(s.Forecast.begin(), nil, CacheEntry{FetchedAt: now, ExpiresAt: now.Add(TTLForecast)})

	if !s.ForecastCacheValid(now.Add(14 * time.Minute)) {
		t.Fatal("TTL 内 forecast 缓存应有效")
	}
	if s.ForecastCacheValid(now.Add(16 * time.Minute)) {
		t.Fatal("TTL 过后 forecast 缓存应失效")
	}
}
