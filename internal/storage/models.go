package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// LevelSample is one archived gauge observation for a station.
type LevelSample struct {
	Bucket    time.Time
	StationID string
	LevelM    decimal.Decimal
	FlowM3S   decimal.Decimal
	Source    string
	Status    string
	Error     *string
	CreatedAt time.Time
}

// AlertRecord captures an emitted threshold alert for auditing.
type AlertRecord struct {
	ID         int64
	SampleTS   time.Time
	StationID  string
	LevelM     decimal.Decimal
	ThresholdM decimal.Decimal
	Severity   string
	Channels   []string
	CreatedAt  time.Time
}
