package workflow

import (
	"context"
	"log/slog"

	"marketreel/internal/config"
	"marketreel/internal/logging"
	"marketreel/internal/marketdata"
	"marketreel/internal/run"
	"marketreel/internal/script"
	"marketreel/internal/services"
	"marketreel/internal/stage"
)

type scriptStage struct {
	cfg       *config.Config
	generator *script.Generator
	logger    *slog.Logger
}

// NewScriptStage turns the ingested snapshot into a validated script.
func NewScriptStage(cfg *config.Config, generator *script.Generator, logger *slog.Logger) stage.Handler {
	return &scriptStage{
		cfg:       cfg,
		generator: generator,
		logger:    logging.NewComponentLogger(logger, "script-stage"),
	}
}

func (s *scriptStage) Prepare(ctx context.Context, item *run.Run) error {
	return s.cfg.EnsureLLMCredentials()
}

func (s *scriptStage) Execute(ctx context.Context, item *run.Run) error {
	source := marketdata.FileSource{Path: item.SourceFile}
	snapshot, err := source.Snapshot()
	if err != nil {
		return services.Wrap(services.ErrValidation, "scripting", "load snapshot artifact", "", err)
	}

	result, err := s.generator.Generate(ctx, snapshot)
	if err != nil {
		return err
	}

	paths := run.NewPaths(s.cfg.RunsDir(), item.RunID)
	if err := result.Save(paths.Script()); err != nil {
		return services.Wrap(services.ErrGeneration, "scripting", "persist script", "", err)
	}

	item.ScriptFile = paths.Script()
	item.Title = result.Title
	return nil
}

func (s *scriptStage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.cfg.EnsureLLMCredentials(); err != nil {
		return stage.Unhealthy("script", err.Error())
	}
	return stage.Healthy("script")
}
