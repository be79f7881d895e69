package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"tradelab/internal/cfg"
	"tradelab/internal/download"
	"tradelab/internal/logx"
	"tradelab/internal/repository"
	"tradelab/types"
)

const dateLayout = "2006-01-02"

func main() {
	config := cfg.Load()
	logx.Setup(config.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, config); err != nil {
		log.Fatal().Err(err).Msg("download failed")
	}
}

func run(ctx context.Context, config cfg.Config) error {
	if config.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}
	start, err := time.Parse(dateLayout, config.Start)
	if err != nil {
		return fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse(dateLayout, config.End)
	if err != nil {
		return fmt.Errorf("parse end date: %w", err)
	}

	client := download.NewClient(config.APIBaseURL, config.APIToken)

	instruments, err := loadInstruments(ctx, config, client)
	if err != nil {
		return err
	}
	log.Info().Int("instruments", len(instruments)).Msg("universe resolved")

	var ingester barIngester
	if config.DatabaseURL != "" {
		db, err := repository.NewDatabase(config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		ingester = &db
	}

	d := download.NewDownloader(client, ingester, config.DataDir,
		time.Duration(config.ThrottleMS)*time.Millisecond)

	summary, err := d.Run(ctx, instruments, start, end)
	if err != nil {
		return err
	}
	log.Info().
		Int("downloaded", summary.Downloaded).
		Int("failed", summary.Failed).
		Int("bars", summary.Bars).
		Msg("download finished")
	return nil
}

type barIngester interface {
	InsertBars(ctx context.Context, symbol string, instrumentType types.InstrumentType, interval types.Interval, bars []types.Bar) (int64, error)
}

// loadInstruments prefers a local universe file and falls back to the
// remote listing.
func loadInstruments(ctx context.Context, config cfg.Config, client *download.Client) ([]download.Instrument, error) {
	if config.UniversePath != "" {
		return download.LoadUniverse(config.UniversePath)
	}
	return client.ListInstruments(ctx, config.Exchange)
}
