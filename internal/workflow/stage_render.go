package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"marketreel/internal/config"
	"marketreel/internal/deps"
	"marketreel/internal/fileutil"
	"marketreel/internal/logging"
	"marketreel/internal/render"
	"marketreel/internal/run"
	"marketreel/internal/services"
	"marketreel/internal/stage"
	"marketreel/internal/timeline"
)

type renderStage struct {
	cfg      *config.Config
	renderer *render.Renderer
	logger   *slog.Logger
}

// NewRenderStage renders the timeline and delivers the final video to the
// output directory.
func NewRenderStage(cfg *config.Config, renderer *render.Renderer, logger *slog.Logger) stage.Handler {
	return &renderStage{
		cfg:      cfg,
		renderer: renderer,
		logger:   logging.NewComponentLogger(logger, "render-stage"),
	}
}

func (s *renderStage) Prepare(ctx context.Context, item *run.Run) error {
	for _, status := range deps.CheckBinaries(deps.Defaults(s.cfg)) {
		if !status.Available && !status.Optional {
			return services.Wrap(services.ErrExternalTool, "rendering", "check dependencies",
				fmt.Sprintf("%s: %s", status.Name, status.Detail), nil)
		}
	}
	return nil
}

func (s *renderStage) Execute(ctx context.Context, item *run.Run) error {
	tl, err := timeline.Load(item.TimelineFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "rendering", "load timeline artifact", "", err)
	}

	paths := run.NewPaths(s.cfg.RunsDir(), item.RunID)
	opts := render.Options{
		Width:            s.cfg.Render.Width,
		Height:           s.cfg.Render.Height,
		CrossfadeSeconds: s.cfg.Render.CrossfadeSeconds,
		BurnSubtitles:    s.cfg.Render.BurnSubtitles,
		SubtitlePath:     item.SubtitleFile,
	}
	if err := s.renderer.Render(ctx, tl, opts, paths.Video()); err != nil {
		return err
	}
	item.VideoFile = paths.Video()

	final := filepath.Join(s.cfg.Paths.OutputDir, finalName(item))
	if err := fileutil.CopyFileVerified(item.VideoFile, final); err != nil {
		return services.Wrap(services.ErrRender, "rendering", "deliver video", "", err)
	}
	item.FinalFile = final

	logging.WithContext(ctx, s.logger).Info("video delivered",
		logging.String("final_file", final),
	)
	return nil
}

func (s *renderStage) HealthCheck(ctx context.Context) stage.Health {
	for _, status := range deps.CheckBinaries(deps.Defaults(s.cfg)) {
		if !status.Available && !status.Optional {
			return stage.Unhealthy("render", status.Detail)
		}
	}
	return stage.Healthy("render")
}

// finalName builds the delivered file name from the trade date, falling back
// to the run identifier when the date is unknown.
func finalName(item *run.Run) string {
	date := strings.TrimSpace(item.TradeDate)
	if date == "" {
		return fmt.Sprintf("market-report-%s.mp4", item.RunID)
	}
	return fmt.Sprintf("market-report-%s.mp4", date)
}
