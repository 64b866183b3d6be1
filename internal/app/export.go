package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"hydrowatch/internal/storage"
)

// Export renders archived level samples as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, a.Config.Station.StationID, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, downsampled, a.Config.Alerting.WarningLevelM); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.LevelSample, max int) []storage.LevelSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.LevelSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.LevelSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"bucket_ts", "station_id", "level_m", "flow_m3s", "source", "status", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		errMsg := ""
		if sample.Error != nil {
			errMsg = *sample.Error
		}
		record := []string{
			sample.Bucket.Format(time.RFC3339),
			sample.StationID,
			sample.LevelM.String(),
			sample.FlowM3S.String(),
			sample.Source,
			sample.Status,
			errMsg,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, samples []storage.LevelSample, warningLevel float64) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	level := make([]float64, len(samples))
	flow := make([]float64, len(samples))

	for i, sample := range samples {
		x[i] = sample.Bucket
		level[i] = sample.LevelM.InexactFloat64()
		flow[i] = sample.FlowM3S.InexactFloat64()
	}

	levelFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Level (m)",
			ValueFormatter: levelFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Flow (m3/s)",
			ValueFormatter: levelFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Level",
				XValues: x,
				YValues: level,
			},
			chart.TimeSeries{
				Name:    "Flow",
				XValues: x,
				YValues: flow,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}

	if warningLevel > 0 && len(x) > 1 {
		warning := make([]float64, len(x))
		for i := range warning {
			warning[i] = warningLevel
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    "Warning threshold",
			XValues: x,
			YValues: warning,
		})
	}

	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
