package workflow

import (
	"context"
	"log/slog"

	"marketreel/internal/config"
	"marketreel/internal/logging"
	"marketreel/internal/marketdata"
	"marketreel/internal/run"
	"marketreel/internal/services"
	"marketreel/internal/stage"
)

type scrapeStage struct {
	cfg    *config.Config
	source marketdata.Source
	logger *slog.Logger
}

// NewScrapeStage ingests the market snapshot into the run directory.
func NewScrapeStage(cfg *config.Config, source marketdata.Source, logger *slog.Logger) stage.Handler {
	return &scrapeStage{
		cfg:    cfg,
		source: source,
		logger: logging.NewComponentLogger(logger, "scrape-stage"),
	}
}

func (s *scrapeStage) Prepare(ctx context.Context, item *run.Run) error {
	paths := run.NewPaths(s.cfg.RunsDir(), item.RunID)
	if err := paths.Ensure(); err != nil {
		return services.Wrap(services.ErrConfiguration, "scraping", "prepare run directory", "", err)
	}
	return nil
}

func (s *scrapeStage) Execute(ctx context.Context, item *run.Run) error {
	snapshot, err := s.source.Snapshot()
	if err != nil {
		return services.Wrap(services.ErrIngest, "scraping", "load snapshot", "", err)
	}
	if err := snapshot.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "scraping", "validate snapshot", "", err)
	}

	paths := run.NewPaths(s.cfg.RunsDir(), item.RunID)
	if err := snapshot.Save(paths.Source()); err != nil {
		return services.Wrap(services.ErrIngest, "scraping", "persist snapshot", "", err)
	}

	item.SourceFile = paths.Source()
	item.TradeDate = snapshot.TradeDate
	logging.WithContext(ctx, s.logger).Info("snapshot ingested",
		logging.String("trade_date", snapshot.TradeDate),
		logging.Int("indices", len(snapshot.Indices)),
	)
	return nil
}

func (s *scrapeStage) HealthCheck(ctx context.Context) stage.Health {
	if s.source == nil {
		return stage.Unhealthy("scrape", "no market data source configured")
	}
	return stage.Healthy("scrape")
}
