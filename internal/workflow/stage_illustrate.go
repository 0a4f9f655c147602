package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"marketreel/internal/asset"
	"marketreel/internal/config"
	"marketreel/internal/logging"
	"marketreel/internal/run"
	"marketreel/internal/script"
	"marketreel/internal/services"
	"marketreel/internal/stage"
)

// ImageGenerator is the contract the illustrate stage needs from the image
// generation service.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Download(ctx context.Context, url, path string) error
}

type illustrateStage struct {
	cfg       *config.Config
	generator ImageGenerator
	logger    *slog.Logger
}

// NewIllustrateStage generates one normalized illustration per script topic.
// Topics that already have an image on disk are skipped, so a retried stage
// only pays for the images it is missing.
func NewIllustrateStage(cfg *config.Config, generator ImageGenerator, logger *slog.Logger) stage.Handler {
	return &illustrateStage{
		cfg:       cfg,
		generator: generator,
		logger:    logging.NewComponentLogger(logger, "illustrate-stage"),
	}
}

func (s *illustrateStage) Prepare(ctx context.Context, item *run.Run) error {
	return s.cfg.EnsureImageCredentials()
}

func (s *illustrateStage) Execute(ctx context.Context, item *run.Run) error {
	loaded, err := script.Load(item.ScriptFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "illustrating", "load script artifact", "", err)
	}

	paths := run.NewPaths(s.cfg.RunsDir(), item.RunID)
	logger := logging.WithContext(ctx, s.logger)

	generated := 0
	for _, topic := range loaded.Topics {
		target := paths.ImageFor(topic.ID)
		if fileExists(target) {
			logger.Debug("illustration exists, skipping", logging.String("topic", topic.ID))
			continue
		}

		prompt, ok := loaded.TopicPrompt(topic.ID)
		if !ok || prompt == "" {
			return services.Wrap(services.ErrValidation, "illustrating", "resolve prompt",
				fmt.Sprintf("topic %q has no visual prompt", topic.ID), nil)
		}

		url, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			return services.Wrap(services.ErrImageGeneration, "illustrating", "generate image",
				fmt.Sprintf("topic %q", topic.ID), err)
		}

		raw := filepath.Join(paths.ImagesDir(), topic.ID+".download")
		if err := s.generator.Download(ctx, url, raw); err != nil {
			return services.Wrap(services.ErrImageGeneration, "illustrating", "download image",
				fmt.Sprintf("topic %q", topic.ID), err)
		}

		if _, err := asset.Normalize(raw, target, s.cfg.Render.Width, s.cfg.Render.Height); err != nil {
			os.Remove(raw)
			return services.Wrap(services.ErrImageGeneration, "illustrating", "normalize image",
				fmt.Sprintf("topic %q", topic.ID), err)
		}
		os.Remove(raw)

		generated++
		logger.Info("illustration generated", logging.String("topic", topic.ID))
	}

	logger.Info("illustrations ready",
		logging.Int("topics", len(loaded.Topics)),
		logging.Int("generated", generated),
	)
	return nil
}

func (s *illustrateStage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.cfg.EnsureImageCredentials(); err != nil {
		return stage.Unhealthy("illustrate", err.Error())
	}
	return stage.Healthy("illustrate")
}
