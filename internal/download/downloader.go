package download

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"tradelab/types"
)

type barFetcher interface {
	GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error)
}

type barIngester interface {
	InsertBars(ctx context.Context, symbol string, instrumentType types.InstrumentType, interval types.Interval, bars []types.Bar) (int64, error)
}

// Downloader fetches daily bars instrument by instrument and writes one
// CSV file each in the layout the CSV feed reads. A non-nil ingester
// additionally mirrors every download into the bar repository.
type Downloader struct {
	source   barFetcher
	ingester barIngester
	outDir   string
	throttle time.Duration
}

func NewDownloader(source barFetcher, ingester barIngester, outDir string, throttle time.Duration) *Downloader {
	return &Downloader{
		source:   source,
		ingester: ingester,
		outDir:   outDir,
		throttle: throttle,
	}
}

// Summary counts the outcome of a download run.
type Summary struct {
	Downloaded int
	Failed     int
	Bars       int
}

// Run downloads every instrument in turn. Failures are logged and
// skipped; only a canceled context stops the run early.
func (d *Downloader) Run(ctx context.Context, instruments []Instrument, start, end time.Time) (Summary, error) {
	if err := os.MkdirAll(d.outDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output dir: %w", err)
	}

	var summary Summary
	progress := initProgressBar(len(instruments))
	for i, inst := range instruments {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		count, err := d.download(ctx, inst, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			log.Error().Err(err).Str("symbol", inst.Symbol).Msg("instrument skipped")
			summary.Failed++
		} else {
			summary.Downloaded++
			summary.Bars += count
		}
		progress.Add(1)

		if d.throttle > 0 && i < len(instruments)-1 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(d.throttle):
			}
		}
	}
	return summary, nil
}

func (d *Downloader) download(ctx context.Context, inst Instrument, start, end time.Time) (int, error) {
	bars, err := d.source.GetDailyBars(ctx, inst.Symbol, start, end)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no bars for %s", inst.Symbol)
	}

	path := filepath.Join(d.outDir, inst.Symbol+".csv")
	if err := writeBarsFile(path, bars); err != nil {
		return 0, err
	}

	if d.ingester != nil {
		if _, err := d.ingester.InsertBars(ctx, inst.Symbol, inst.InstrumentType(), types.Day, bars); err != nil {
			return 0, fmt.Errorf("ingest %s: %w", inst.Symbol, err)
		}
	}
	return len(bars), nil
}

var csvHeader = []string{"date", "open", "high", "low", "close", "adj_close", "volume"}

func writeBarsFile(path string, bars []types.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeBars(f, bars); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeBars(w io.Writer, bars []types.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, bar := range bars {
		// The API serves adjusted prices, so close and adj_close coincide.
		record := []string{
			bar.Time.Format(dateLayout),
			bar.Open.String(),
			bar.High.String(),
			bar.Low.String(),
			bar.Close.String(),
			bar.Close.String(),
			bar.Volume.String(),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Downloading daily bars..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
