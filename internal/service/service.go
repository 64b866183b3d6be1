package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"hydrowatch/internal/alerting"
	"hydrowatch/internal/config"
	"hydrowatch/internal/dashboard"
	"hydrowatch/internal/scheduler"
	"hydrowatch/internal/session"
	"hydrowatch/internal/storage"
)

// Service runs the dashboard refresh loop: on every tick it re-evaluates
// cache freshness, loads whatever went stale, archives the latest
// reading, and raises threshold alerts.
type Service struct {
	scheduler *scheduler.Scheduler
	orch      *dashboard.Orchestrator
	board     *dashboard.Store
	gate      *session.Gate
	archive   storage.LevelSampleStore
	alerts    storage.AlertStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	stationID string
	warning   decimal.Decimal
	danger    decimal.Decimal
	channels  []string
	alertsOn  bool
	cooldown  time.Duration
	lastAlert time.Time

	locker  storage.AdvisoryLocker
	lockKey int64
}

// New constructs the refresh service.
func New(cfg *config.Config, sched *scheduler.Scheduler, orch *dashboard.Orchestrator, board *dashboard.Store, gate *session.Gate, archive storage.LevelSampleStore, alerts storage.AlertStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	warning := decimal.Zero
	danger := decimal.Zero
	if cfg.Alerting.Enabled {
		if cfg.Alerting.WarningLevelM > 0 {
			warning = decimal.NewFromFloat(cfg.Alerting.WarningLevelM)
		}
		if cfg.Alerting.DangerLevelM > 0 {
			danger = decimal.NewFromFloat(cfg.Alerting.DangerLevelM)
		}
	}

	var locker storage.AdvisoryLocker
	if l, ok := archive.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler: sched,
		orch:      orch,
		board:     board,
		gate:      gate,
		archive:   archive,
		alerts:    alerts,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),
		stationID: cfg.Station.StationID,
		warning:   warning,
		danger:    danger,
		channels:  cfg.Alerting.Channels,
		alertsOn:  cfg.Alerting.Enabled,
		cooldown:  cfg.Alerting.Cooldown,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick 执行单个刷新周期的编排逻辑。
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeTick(ctx, tick)
}

func (s *Service) executeTick(ctx context.Context, tick time.Time) error {
	if s.gate != nil && !s.gate.Ensure() {
		return session.ErrNotAuthenticated
	}

	roundStart := time.Now()

	rng := dashboard.DateRange{} // defaults to today-today
	params := dashboard.BuildParams(rng.Start, rng.End, roundStart)
	flags := s.board.EvaluateFlags(params, roundStart)

	s.orch.Load(ctx, rng, flags)
	s.orch.Wait()

	latest := s.board.Latest.Get()
	if latest.Err != "" {
		s.logger.Warn().Str("error", latest.Err).Time("tick", tick).Msg("latest reading fetch failed this round")
	}
	if !latest.HasValue || latest.LastFetchedAt.Before(roundStart) {
		// Served from cache this round; nothing new to archive or alert on.
		return nil
	}

	reading := latest.Value
	if s.archive != nil {
		sample := storage.LevelSample{
			Bucket:    tick,
			StationID: s.stationID,
			LevelM:    reading.LevelM,
			FlowM3S:   reading.FlowM3S,
			Source:    "live",
			Status:    "complete",
			CreatedAt: time.Now().UTC(),
		}
		if err := s.archive.UpsertLevelSample(ctx, sample); err != nil {
			s.logger.Error().Err(err).Time("tick", tick).Msg("failed to archive level sample")
		}
	}

	s.logger.Info().Time("tick", tick).
		Str("level_m", reading.LevelM.String()).
		Str("flow_m3s", reading.FlowM3S.String()).
		Msg("reading recorded")

	s.maybeAlert(ctx, tick, reading.LevelM, reading.FlowM3S)
	return nil
}

func (s *Service) maybeAlert(ctx context.Context, tick time.Time, level, flow decimal.Decimal) {
	if !s.alertsOn || s.notifier == nil {
		return
	}

	severity, threshold := ClassifyLevel(level, s.warning, s.danger)
	if severity == "" {
		return
	}
	if s.cooldown > 0 && !s.lastAlert.IsZero() && tick.Sub(s.lastAlert) < s.cooldown {
		s.logger.Debug().Time("tick", tick).Msg("alert suppressed during cooldown window")
		return
	}

	note := alerting.Notification{
		StationID:  s.stationID,
		Tick:       tick,
		LevelM:     level,
		FlowM3S:    flow,
		ThresholdM: threshold,
		Severity:   severity,
		Channels:   s.channels,
	}

	if s.alerts != nil {
		record := storage.AlertRecord{
			SampleTS:   tick,
			StationID:  s.stationID,
			LevelM:     level,
			ThresholdM: threshold,
			Severity:   severity,
			Channels:   s.channels,
		}
		if _, err := s.alerts.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Time("tick", tick).Msg("failed to persist alert record")
		}
	}

	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Time("tick", tick).Msg("failed to dispatch alert")
		return
	}
	s.lastAlert = tick
}

// ClassifyLevel returns the severity and the threshold crossed, or empty
// when the level is below both thresholds.
func ClassifyLevel(level, warning, danger decimal.Decimal) (string, decimal.Decimal) {
	if !danger.IsZero() && level.GreaterThanOrEqual(danger) {
		return "danger", danger
	}
	if !warning.IsZero() && level.GreaterThanOrEqual(warning) {
		return "warning", warning
	}
	return "", decimal.Zero
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
