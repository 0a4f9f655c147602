package workflow

import (
	"context"
	"log/slog"

	"marketreel/internal/asset"
	"marketreel/internal/config"
	"marketreel/internal/logging"
	"marketreel/internal/plan"
	"marketreel/internal/run"
	"marketreel/internal/services"
	"marketreel/internal/stage"
	"marketreel/internal/timeline"
)

type planStage struct {
	cfg     *config.Config
	planner *plan.Planner
	logger  *slog.Logger
}

// NewPlanStage converts the aligned segments into the scene timeline.
func NewPlanStage(cfg *config.Config, planner *plan.Planner, logger *slog.Logger) stage.Handler {
	return &planStage{
		cfg:     cfg,
		planner: planner,
		logger:  logging.NewComponentLogger(logger, "plan-stage"),
	}
}

func (s *planStage) Prepare(ctx context.Context, item *run.Run) error {
	return nil
}

func (s *planStage) Execute(ctx context.Context, item *run.Run) error {
	segments, err := timeline.LoadSegments(item.SegmentsFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "planning", "load segments artifact", "", err)
	}

	paths := run.NewPaths(s.cfg.RunsDir(), item.RunID)
	images, err := asset.LoadLibrary(paths.ImagesDir())
	if err != nil {
		return services.Wrap(services.ErrValidation, "planning", "load illustrations", "", err)
	}

	result, err := s.planner.Plan(plan.Inputs{
		Title:     item.Title,
		TradeDate: item.TradeDate,
		AudioPath: item.AudioFile,
		FrameRate: s.cfg.Render.FrameRate,
		Segments:  segments,
		Images:    images,
	})
	if err != nil {
		return err
	}

	if err := result.Save(paths.Timeline()); err != nil {
		return services.Wrap(services.ErrValidation, "planning", "persist timeline", "", err)
	}

	item.TimelineFile = paths.Timeline()
	logging.WithContext(ctx, s.logger).Info("scenes planned",
		logging.Int("scenes", len(result.Scenes)),
	)
	return nil
}

func (s *planStage) HealthCheck(ctx context.Context) stage.Health {
	if s.planner == nil {
		return stage.Unhealthy("plan", "no planner configured")
	}
	return stage.Healthy("plan")
}
