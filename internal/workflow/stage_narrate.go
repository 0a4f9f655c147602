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
	"marketreel/internal/services/tts"
	"marketreel/internal/stage"
)

// Synthesizer is the narrow TTS contract the narrate stage depends on.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, audioPath string) (tts.Result, error)
}

type narrateStage struct {
	cfg         *config.Config
	synthesizer Synthesizer
	logger      *slog.Logger
}

// NewNarrateStage synthesizes the full narration in one continuous track and
// persists the recognition spans alongside it.
func NewNarrateStage(cfg *config.Config, synthesizer Synthesizer, logger *slog.Logger) stage.Handler {
	return &narrateStage{
		cfg:         cfg,
		synthesizer: synthesizer,
		logger:      logging.NewComponentLogger(logger, "narrate-stage"),
	}
}

func (s *narrateStage) Prepare(ctx context.Context, item *run.Run) error {
	return s.cfg.EnsureTTSCredentials()
}

func (s *narrateStage) Execute(ctx context.Context, item *run.Run) error {
	loaded, err := script.Load(item.ScriptFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "narrating", "load script artifact", "", err)
	}

	paths := run.NewPaths(s.cfg.RunsDir(), item.RunID)
	result, err := s.synthesizer.Synthesize(ctx, loaded.FullNarration(), paths.Audio())
	if err != nil {
		return services.Wrap(services.ErrSynthesis, "narrating", "synthesize narration", "", err)
	}

	spans := make([]align.Span, 0, len(result.Timestamps))
	for _, ts := range result.Timestamps {
		spans = append(spans, align.Span{
			Text:  ts.Text,
			Start: float64(ts.StartMS) / 1000,
			End:   float64(ts.EndMS) / 1000,
		})
	}
	if err := align.SaveSpans(paths.Timestamps(), spans); err != nil {
		return services.Wrap(services.ErrSynthesis, "narrating", "persist timestamps", "", err)
	}

	item.AudioFile = result.AudioPath
	item.SpansFile = paths.Timestamps()
	logging.WithContext(ctx, s.logger).Info("narration synthesized",
		logging.Int("spans", len(spans)),
	)
	return nil
}

func (s *narrateStage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.cfg.EnsureTTSCredentials(); err != nil {
		return stage.Unhealthy("narrate", err.Error())
	}
	return stage.Healthy("narrate")
}
