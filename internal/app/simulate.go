package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"hydrowatch/internal/alerting"
	"hydrowatch/internal/service"
)

// SimulateAlert 通过给定的水位值模拟一次告警流程。
func (a *App) SimulateAlert(ctx context.Context, level decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	warning := decimal.NewFromFloat(a.Config.Alerting.WarningLevelM)
	danger := decimal.NewFromFloat(a.Config.Alerting.DangerLevelM)

	severity, threshold := service.ClassifyLevel(level, warning, danger)
	if severity == "" {
		a.Logger.Info().Str("level_m", level.String()).Msg("水位低于告警阈值，不会发送告警")
		return nil
	}

	note := alerting.Notification{
		StationID:     a.Config.Station.StationID,
		Tick:          time.Now().UTC().Truncate(a.Config.Scheduler.Interval),
		LevelM:        level,
		ThresholdM:    threshold,
		Severity:      severity,
		Channels:      a.Config.Alerting.Channels,
		AdditionalMsg: "(simulated)",
	}

	return notifier.Notify(ctx, note)
}
