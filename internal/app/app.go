package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"hydrowatch/internal/alerting"
	"hydrowatch/internal/config"
	"hydrowatch/internal/dashboard"
	"hydrowatch/internal/fetcher"
	"hydrowatch/internal/scheduler"
	"hydrowatch/internal/service"
	"hydrowatch/internal/session"
	"hydrowatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	sessions *session.Client
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	sessionBase := cfg.Session.BaseURL
	if sessionBase == "" {
		sessionBase = cfg.Station.BaseURL
	}
	sessions := session.NewClient(session.Options{
		BaseURL:   sessionBase,
		TokenFile: cfg.Session.TokenFile,
		Timeout:   cfg.Session.RequestTimeout,
		UserAgent: cfg.Station.UserAgent,
	}, logger)

	return &App{
		Config:   cfg,
		Logger:   logger.With().Str("component", "app").Logger(),
		sessions: sessions,
	}
}

func (a *App) newStationClient() *fetcher.Station {
	return fetcher.NewStation(fetcher.StationOptions{
		BaseURL:   a.Config.Station.BaseURL,
		StationID: a.Config.Station.StationID,
		Timeout:   a.Config.Station.RequestTimeout,
		UserAgent: a.Config.Station.UserAgent,
		Backoff:   fetcher.BackoffOptions{MaxRetries: a.Config.Station.MaxRetries},
		TokenFunc: a.sessions.TokenValue,
	}, a.Logger)
}

// newDashboard assembles the store and orchestrator pair around a source.
func (a *App) newDashboard(source dashboard.Source) (*dashboard.Store, *dashboard.Orchestrator) {
	board := dashboard.NewStore()
	ttls := dashboard.TTLSet{
		Latest:   a.Config.Cache.LatestTTL,
		Average:  a.Config.Cache.AverageTTL,
		Daily:    a.Config.Cache.DailyTTL,
		Monthly:  a.Config.Cache.MonthlyTTL,
		Forecast: a.Config.Cache.ForecastTTL,
	}
	orch := dashboard.NewOrchestrator(board, source, ttls, a.Logger)
	return board, orch
}

func (a *App) newGate() *session.Gate {
	return session.NewGate(a.sessions, newLogNavigator(a.Logger), a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running refresh daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; archival disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToTick,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	board, orch := a.newDashboard(a.newStationClient())
	notifier := a.newNotifier()

	var archive storage.LevelSampleStore
	var alertStore storage.AlertStore
	if store != nil {
		archive = store
		alertStore = store
	}

	svc := service.New(a.Config, sched, orch, board, a.newGate(), archive, alertStore, notifier, a.Logger)

	a.Logger.Info().Str("station", a.Config.Station.StationID).Msg("starting refresh daemon")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("daemon terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh daemon stopped")
	return nil
}

// ExportOptions hold parameters for exporting archived samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}

// RefreshOptions configure a one-shot dashboard refresh.
type RefreshOptions struct {
	Start time.Time
	End   time.Time
	Force bool
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}
