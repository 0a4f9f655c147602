package workflow

import (
	"context"
	"log/slog"

	"marketreel/internal/align"
	"marketreel/internal/config"
	"marketreel/internal/logging"
	"marketreel/internal/run"
	"marketreel/internal/script"
	"marketreel/internal/services"
	"marketreel/internal/services/ffmpeg"
	"marketreel/internal/stage"
	"marketreel/internal/subtitles"
	"marketreel/internal/timeline"
)

type alignStage struct {
	cfg     *config.Config
	aligner *align.Aligner
	probe   ffmpeg.Client
	logger  *slog.Logger
}

// NewAlignStage derives timed segments from the narration timestamps and
// writes the subtitle track alongside them.
func NewAlignStage(cfg *config.Config, aligner *align.Aligner, probe ffmpeg.Client, logger *slog.Logger) stage.Handler {
	return &alignStage{
		cfg:     cfg,
		aligner: aligner,
		probe:   probe,
		logger:  logging.NewComponentLogger(logger, "align-stage"),
	}
}

func (s *alignStage) Prepare(ctx context.Context, item *run.Run) error {
	return nil
}

func (s *alignStage) Execute(ctx context.Context, item *run.Run) error {
	loaded, err := script.Load(item.ScriptFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "aligning", "load script artifact", "", err)
	}
	spans, err := align.LoadSpans(item.SpansFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "aligning", "load timestamps artifact", "", err)
	}

	total, err := s.probe.Duration(ctx, item.AudioFile)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "aligning", "probe audio duration", "", err)
	}

	segments, err := s.aligner.Align(loaded.Segments, spans, total)
	if err != nil {
		return err
	}

	paths := run.NewPaths(s.cfg.RunsDir(), item.RunID)
	if err := timeline.SaveSegments(paths.Segments(), segments); err != nil {
		return services.Wrap(services.ErrAlignment, "aligning", "persist segments", "", err)
	}
	if err := subtitles.WriteSRT(paths.Subtitles(), segments); err != nil {
		return services.Wrap(services.ErrAlignment, "aligning", "write subtitles", "", err)
	}

	item.SegmentsFile = paths.Segments()
	item.SubtitleFile = paths.Subtitles()
	logging.WithContext(ctx, s.logger).Info("transcript aligned",
		logging.Int("segments", len(segments)),
	)
	return nil
}

func (s *alignStage) HealthCheck(ctx context.Context) stage.Health {
	if s.probe == nil {
		return stage.Unhealthy("align", "no media probe configured")
	}
	return stage.Healthy("align")
}
