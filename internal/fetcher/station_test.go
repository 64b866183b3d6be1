package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testStation(t *testing.T, handler http.Handler) *Station {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	station := NewStation(StationOptions{
		BaseURL:   srv.URL,
		StationID: "rio-negro-01",
		Backoff:   BackoffOptions{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		TokenFunc: func() string { return "tok-123" },
	}, zerolog.Nop())
	return station
}

func TestFetchLatest(t *testing.T) {
	var gotPath, gotAuth string
	station := testStation(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"station_id":"rio-negro-01","level_m":"3.42","flow_m3s":"120.5","recorded_at":"2024-05-01T12:00:00Z"}`))
	}))

	reading, err := station.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest 失败: %v", err)
	}
	if gotPath != "/stations/rio-negro-01/latest" {
		t.Fatalf("请求路径错误: %s", gotPath)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("缺少 bearer token: %q", gotAuth)
	}
	if !reading.LevelM.Equal(decimal.RequireFromString("3.42")) {
		t.Fatalf("水位解析错误: %s", reading.LevelM)
	}
	if reading.RecordedAt.IsZero() {
		t.Fatal("recorded_at 未解析")
	}
}

func TestFetchAverage(t *testing.T) {
	var gotQuery string
	station := testStation(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"station_id":"rio-negro-01","avg_level_m":"3.1","max_level_m":"4.2","min_level_m":"2.0","samples":288}`))
	}))

	avg, err := station.FetchAverage(context.Background(), "2024-4-10", "2024-4-12")
	if err != nil {
		t.Fatalf("FetchAverage 失败: %v", err)
	}
	if !strings.Contains(gotQuery, "startDate=2024-4-10") || !strings.Contains(gotQuery, "endDate=2024-4-12") {
		t.Fatalf("日期参数未透传: %s", gotQuery)
	}
	if avg.Samples != 288 || !avg.MaxLevelM.Equal(decimal.RequireFromString("4.2")) {
		t.Fatalf("响应解析错误: %+v", avg)
	}

	if _, err := station.FetchAverage(context.Background(), "", "2024-4-12"); err == nil {
		t.Fatal("缺少日期参数应报错")
	}
}

func TestFetchMonthlyRequiresYear(t *testing.T) {
	station := testStation(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("year") != "2024" {
			t.Errorf("year 参数错误: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"points":[{"month":5,"avg_level_m":"3.0","max_level_m":"3.5","min_level_m":"2.5"}]}`))
	}))

	points, err := station.FetchMonthly(context.Background(), "2024")
	if err != nil {
		t.Fatalf("FetchMonthly 失败: %v", err)
	}
	if len(points) != 1 || points[0].Year != "2024" || points[0].Month != 5 {
		t.Fatalf("响应解析错误: %+v", points)
	}

	if _, err := station.FetchMonthly(context.Background(), ""); err == nil {
		t.Fatal("缺少 year 应报错")
	}
}

func TestFetchForecast(t *testing.T) {
	station := testStation(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"points":[{"date":"2024-05-02","level_m":"3.8","confidence":"0.72"},{"date":"2024-05-03","level_m":"4.1","confidence":""}]}`))
	}))

	points, err := station.FetchForecast(context.Background())
	if err != nil {
		t.Fatalf("FetchForecast 失败: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("期望 2 个预测点, 实际 %d", len(points))
	}
	if !points[1].Confidence.IsZero() {
		t.Fatalf("缺失 confidence 应为零值: %s", points[1].Confidence)
	}
}

func TestAPIErrorBody(t *testing.T) {
	station := testStation(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorType":"NOT_FOUND","description":"station not found"}`))
	}))

	_, err := station.FetchLatest(context.Background())
	if err == nil {
		t.Fatal("404 应返回错误")
	}
	if !strings.Contains(err.Error(), "station api error (404)") || !strings.Contains(err.Error(), "station not found") {
		t.Fatalf("错误消息格式不符: %v", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var hits atomic.Int32
	station := testStation(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"station_id":"rio-negro-01","level_m":"3.0","flow_m3s":"","recorded_at":"2024-05-01T12:00:00Z"}`))
	}))

	reading, err := station.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("重试后仍失败: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("期望重试一次, 实际请求 %d 次", hits.Load())
	}
	if !reading.FlowM3S.IsZero() {
		t.Fatalf("缺失 flow 应为零: %s", reading.FlowM3S)
	}
}

func TestMissingConfiguration(t *testing.T) {
	station := NewStation(StationOptions{}, zerolog.Nop())
	if _, err := station.FetchLatest(context.Background()); err == nil {
		t.Fatal("未配置 base url 应报错")
	}

	station = NewStation(StationOptions{BaseURL: "http://example.com"}, zerolog.Nop())
	if _, err := station.FetchDaily(context.Background()); err == nil {
		t.Fatal("未配置 station id 应报错")
	}
}
