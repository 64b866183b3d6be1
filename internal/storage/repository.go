package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertLevelSampleSQL = `INSERT INTO level_samples (
        bucket_ts,
        station_id,
        level_m,
        flow_m3s,
        source,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (bucket_ts, station_id) DO UPDATE
    SET
        level_m  = EXCLUDED.level_m,
        flow_m3s = EXCLUDED.flow_m3s,
        source   = EXCLUDED.source,
        status   = EXCLUDED.status,
        error    = EXCLUDED.error;`

	listSamplesBetweenSQL = `SELECT
        bucket_ts,
        station_id,
        level_m,
        flow_m3s,
        source,
        status,
        error,
        created_at
    FROM level_samples
    WHERE station_id = $1
      AND bucket_ts >= $2
      AND bucket_ts < $3
    ORDER BY bucket_ts;`

	listRecentSamplesSQL = `SELECT
        bucket_ts,
        station_id,
        level_m,
        flow_m3s,
        source,
        status,
        error,
        created_at
    FROM level_samples
    WHERE station_id = $1
    ORDER BY bucket_ts DESC
    LIMIT $2;`

	countSamplesSQL = `SELECT COUNT(*) FROM level_samples WHERE station_id = $1;`

	insertAlertSQL = `INSERT INTO alerts (
        sample_ts,
        station_id,
        level_m,
        threshold_m,
        severity,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (sample_ts, station_id) DO UPDATE
    SET level_m     = EXCLUDED.level_m,
        threshold_m = EXCLUDED.threshold_m,
        severity    = EXCLUDED.severity,
        channels    = EXCLUDED.channels
    RETURNING id, sample_ts, station_id, level_m, threshold_m, severity, channels, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        sample_ts,
        station_id,
        level_m,
        threshold_m,
        severity,
        channels,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// LevelSampleStore defines operations for level sample persistence.
type LevelSampleStore interface {
	UpsertLevelSample(ctx context.Context, sample LevelSample) error
	ListSamplesBetween(ctx context.Context, station string, from, to time.Time) ([]LevelSample, error)
	ListRecentSamples(ctx context.Context, station string, limit int) ([]LevelSample, error)
	CountSamples(ctx context.Context, station string) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to level samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertLevelSample persists or updates a level sample.
func (s *Store) UpsertLevelSample(ctx context.Context, sample LevelSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if sample.Error != nil {
		errMsg = *sample.Error
	}

	_, execErr := pool.Exec(ctx, upsertLevelSampleSQL,
		sample.Bucket,
		sample.StationID,
		sample.LevelM.String(),
		sample.FlowM3S.String(),
		sample.Source,
		sample.Status,
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("upsert level sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists a station's samples within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, station string, from, to time.Time) ([]LevelSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, station, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]LevelSample, 0)
	for rows.Next() {
		sample, scanErr := scanLevelSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples ordered by descending bucket.
func (s *Store) ListRecentSamples(ctx context.Context, station string, limit int) ([]LevelSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, station, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]LevelSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanLevelSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountSamples counts a station's stored samples.
func (s *Store) CountSamples(ctx context.Context, station string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL, station).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.SampleTS,
		alert.StationID,
		alert.LevelM.String(),
		alert.ThresholdM.String(),
		alert.Severity,
		alert.Channels,
	)

	rec, scanErr := scanAlertRecord(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlertRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

func scanLevelSample(rows pgx.Rows) (LevelSample, error) {
	var (
		bucket    time.Time
		station   string
		levelStr  string
		flowStr   string
		source    string
		status    string
		errMsg    sql.NullString
		createdAt time.Time
	)

	if err := rows.Scan(
		&bucket,
		&station,
		&levelStr,
		&flowStr,
		&source,
		&status,
		&errMsg,
		&createdAt,
	); err != nil {
		return LevelSample{}, err
	}

	level, err := decimal.NewFromString(levelStr)
	if err != nil {
		return LevelSample{}, fmt.Errorf("parse level: %w", err)
	}
	flow, err := decimal.NewFromString(flowStr)
	if err != nil {
		return LevelSample{}, fmt.Errorf("parse flow: %w", err)
	}

	sample := LevelSample{
		Bucket:    bucket,
		StationID: station,
		LevelM:    level,
		FlowM3S:   flow,
		Source:    source,
		Status:    status,
		CreatedAt: createdAt,
	}
	if errMsg.Valid {
		msg := errMsg.String
		sample.Error = &msg
	}

	return sample, nil
}

func scanAlertRecord(row pgx.Row) (AlertRecord, error) {
	var rec AlertRecord
	var levelStr, thresholdStr string
	if err := row.Scan(
		&rec.ID,
		&rec.SampleTS,
		&rec.StationID,
		&levelStr,
		&thresholdStr,
		&rec.Severity,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var convErr error
	rec.LevelM, convErr = decimal.NewFromString(levelStr)
	if convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse level: %w", convErr)
	}
	rec.ThresholdM, convErr = decimal.NewFromString(thresholdStr)
	if convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse threshold: %w", convErr)
	}

	return rec, nil
}
