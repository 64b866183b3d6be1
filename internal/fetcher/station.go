package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"hydrowatch/internal/telemetry"
)

// StationOptions parameterise the station telemetry fetcher.
type StationOptions struct {
	BaseURL   string
	StationID string
	Timeout   time.Duration
	UserAgent string
	Backoff   BackoffOptions

	// TokenFunc supplies the current session bearer token. The session
	// layer owns token lifecycle; an empty string sends no auth header.
	TokenFunc func() string
}

// Station fetches dashboard datasets over the station HTTP API.
type Station struct {
	opts    StationOptions
	logger  zerolog.Logger
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	baseURL string
}

// NewStation constructs a station fetcher.
func NewStation(opts StationOptions, logger zerolog.Logger) *Station {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "station_api",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Station{
		opts:    opts,
		logger:  logger.With().Str("component", "station_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		circuit: cb,
		baseURL: baseURL,
	}
}

// FetchLatest retrieves the most recent gauge reading.
func (s *Station) FetchLatest(ctx context.Context) (telemetry.Reading, error) {
	var payload struct {
		StationID  string `json:"station_id"`
		LevelM     string `json:"level_m"`
		FlowM3S    string `json:"flow_m3s"`
		RecordedAt string `json:"recorded_at"`
	}
	if err := s.getJSON(ctx, "/latest", nil, &payload); err != nil {
		return telemetry.Reading{}, err
	}

	level, err := decimal.NewFromString(payload.LevelM)
	if err != nil {
		return telemetry.Reading{}, fmt.Errorf("parse level: %w", err)
	}
	flow := decimal.Zero
	if payload.FlowM3S != "" {
		flow, err = decimal.NewFromString(payload.FlowM3S)
		if err != nil {
			return telemetry.Reading{}, fmt.Errorf("parse flow: %w", err)
		}
	}

	recordedAt, err := time.Parse(time.RFC3339, payload.RecordedAt)
	if err != nil {
		return telemetry.Reading{}, fmt.Errorf("parse recorded_at: %w", err)
	}

	return telemetry.Reading{
		StationID:  payload.StationID,
		LevelM:     level,
		FlowM3S:    flow,
		RecordedAt: recordedAt,
	}, nil
}

// FetchAverage retrieves the level summary for a date range. The range
// endpoints arrive pre-formatted by the dashboard layer.
func (s *Station) FetchAverage(ctx context.Context, startDate, endDate string) (telemetry.PeriodAverage, error) {
	if startDate == "" || endDate == "" {
		return telemetry.PeriodAverage{}, errors.New("startDate and endDate required")
	}

	query := url.Values{}
	query.Set("startDate", startDate)
	query.Set("endDate", endDate)

	var payload struct {
		StationID string `json:"station_id"`
		AvgLevelM string `json:"avg_level_m"`
		MaxLevelM string `json:"max_level_m"`
		MinLevelM string `json:"min_level_m"`
		Samples   int    `json:"samples"`
	}
	if err := s.getJSON(ctx, "/average", query, &payload); err != nil {
		return telemetry.PeriodAverage{}, err
	}

	avg, maxLevel, minLevel, err := parseLevelTriple(payload.AvgLevelM, payload.MaxLevelM, payload.MinLevelM)
	if err != nil {
		return telemetry.PeriodAverage{}, err
	}

	return telemetry.PeriodAverage{
		StationID: payload.StationID,
		StartDate: startDate,
		EndDate:   endDate,
		AvgLevelM: avg,
		MaxLevelM: maxLevel,
		MinLevelM: minLevel,
		Samples:   payload.Samples,
	}, nil
}

// FetchDaily retrieves the recent daily level series.
func (s *Station) FetchDaily(ctx context.Context) ([]telemetry.DailyPoint, error) {
	var payload struct {
		Points []struct {
			Date      string `json:"date"`
			AvgLevelM string `json:"avg_level_m"`
			MaxLevelM string `json:"max_level_m"`
			MinLevelM string `json:"min_level_m"`
		} `json:"points"`
	}
	if err := s.getJSON(ctx, "/daily", nil, &payload); err != nil {
		return nil, err
	}

	points := make([]telemetry.DailyPoint, 0, len(payload.Points))
	for _, p := range payload.Points {
		avg, maxLevel, minLevel, err := parseLevelTriple(p.AvgLevelM, p.MaxLevelM, p.MinLevelM)
		if err != nil {
			return nil, fmt.Errorf("daily point %s: %w", p.Date, err)
		}
		points = append(points, telemetry.DailyPoint{
			Date:      p.Date,
			AvgLevelM: avg,
			MaxLevelM: maxLevel,
			MinLevelM: minLevel,
		})
	}
	return points, nil
}

// FetchMonthly retrieves the monthly level series for one year bucket.
func (s *Station) FetchMonthly(ctx context.Context, year string) ([]telemetry.MonthlyPoint, error) {
	if year == "" {
		return nil, errors.New("year required")
	}

	query := url.Values{}
	query.Set("year", year)

	var payload struct {
		Points []struct {
			Month     int    `json:"month"`
			AvgLevelM string `json:"avg_level_m"`
			MaxLevelM string `json:"max_level_m"`
			MinLevelM string `json:"min_level_m"`
		} `json:"points"`
	}
	if err := s.getJSON(ctx, "/monthly", query, &payload); err != nil {
		return nil, err
	}

	points := make([]telemetry.MonthlyPoint, 0, len(payload.Points))
	for _, p := range payload.Points {
		avg, maxLevel, minLevel, err := parseLevelTriple(p.AvgLevelM, p.MaxLevelM, p.MinLevelM)
		if err != nil {
			return nil, fmt.Errorf("monthly point %d: %w", p.Month, err)
		}
		points = append(points, telemetry.MonthlyPoint{
			Year:      year,
			Month:     p.Month,
			AvgLevelM: avg,
			MaxLevelM: maxLevel,
			MinLevelM: minLevel,
		})
	}
	return points, nil
}

// FetchForecast retrieves the predicted level series.
func (s *Station) FetchForecast(ctx context.Context) ([]telemetry.ForecastPoint, error) {
	var payload struct {
		Points []struct {
			Date       string `json:"date"`
			LevelM     string `json:"level_m"`
			Confidence string `json:"confidence"`
		} `json:"points"`
	}
	if err := s.getJSON(ctx, "/forecast", nil, &payload); err != nil {
		return nil, err
	}

	points := make([]telemetry.ForecastPoint, 0, len(payload.Points))
	for _, p := range payload.Points {
		level, err := decimal.NewFromString(p.LevelM)
		if err != nil {
			return nil, fmt.Errorf("forecast point %s: %w", p.Date, err)
		}
		confidence := decimal.Zero
		if p.Confidence != "" {
			confidence, err = decimal.NewFromString(p.Confidence)
			if err != nil {
				return nil, fmt.Errorf("forecast point %s: %w", p.Date, err)
			}
		}
		points = append(points, telemetry.ForecastPoint{
			Date:       p.Date,
			LevelM:     level,
			Confidence: confidence,
		})
	}
	return points, nil
}

func (s *Station) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if s.baseURL == "" {
		return errors.New("station base url not configured")
	}
	if s.opts.StationID == "" {
		return errors.New("station id not configured")
	}

	endpoint := fmt.Sprintf("%s/stations/%s%s", s.baseURL, url.PathEscape(s.opts.StationID), path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
			req.Header.Set("User-Agent", ua)
		} else {
			req.Header.Set("User-Agent", "hydrowatch/1.0")
		}
		if s.opts.TokenFunc != nil {
			if token := s.opts.TokenFunc(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
		return req, nil
	}

	resp, err := doWithResilience(ctx, s.client, s.circuit, s.opts.Backoff, build)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payloadBytes)
	}

	return json.Unmarshal(payloadBytes, out)
}

func parseLevelTriple(avgStr, maxStr, minStr string) (avg, maxLevel, minLevel decimal.Decimal, err error) {
	avg, err = decimal.NewFromString(avgStr)
	if err != nil {
		return avg, maxLevel, minLevel, fmt.Errorf("parse avg level: %w", err)
	}
	maxLevel, err = decimal.NewFromString(maxStr)
	if err != nil {
		return avg, maxLevel, minLevel, fmt.Errorf("parse max level: %w", err)
	}
	minLevel, err = decimal.NewFromString(minStr)
	if err != nil {
		return avg, maxLevel, minLevel, fmt.Errorf("parse min level: %w", err)
	}
	return avg, maxLevel, minLevel, nil
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("station api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("station api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("station api error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("station api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("station api error (%d)", status)
}

var _ StationReader = (*Station)(nil)
