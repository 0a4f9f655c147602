package workflow

import (
	"log/slog"

	"marketreel/internal/align"
	"marketreel/internal/config"
	"marketreel/internal/marketdata"
	"marketreel/internal/plan"
	"marketreel/internal/render"
	"marketreel/internal/script"
	"marketreel/internal/services/ffmpeg"
	"marketreel/internal/services/imagegen"
	"marketreel/internal/services/llm"
	"marketreel/internal/services/tts"
)

// DefaultHandlers wires the production stage handlers from configuration.
func DefaultHandlers(cfg *config.Config, logger *slog.Logger) Handlers {
	tool := ffmpeg.NewCLI(ffmpeg.WithBinaries(cfg.Render.FFmpegBinary, cfg.Render.FFprobeBinary))

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	ttsClient := tts.NewClient(tts.Config{
		AppID:          cfg.TTS.AppID,
		AccessToken:    cfg.TTS.AccessToken,
		Cluster:        cfg.TTS.Cluster,
		Endpoint:       cfg.TTS.Endpoint,
		Voice:          cfg.TTS.Voice,
		Language:       cfg.TTS.Language,
		SpeedRatio:     cfg.TTS.SpeedRatio,
		TimeoutSeconds: cfg.TTS.TimeoutSeconds,
	})
	imageClient := imagegen.NewClient(imagegen.Config{
		APIKey:         cfg.Images.APIKey,
		BaseURL:        cfg.Images.BaseURL,
		Model:          cfg.Images.Model,
		Size:           cfg.Images.Size,
		TimeoutSeconds: cfg.Images.TimeoutSeconds,
	})

	return Handlers{
		Scrape:     NewScrapeStage(cfg, marketdata.FileSource{Path: cfg.Market.SourceFile}, logger),
		Script:     NewScriptStage(cfg, script.NewGenerator(llmClient, logger), logger),
		Narrate:    NewNarrateStage(cfg, ttsClient, logger),
		Illustrate: NewIllustrateStage(cfg, imageClient, logger),
		Align:      NewAlignStage(cfg, align.New(logger), tool, logger),
		Plan:       NewPlanStage(cfg, plan.New(cfg.Planner.MinSceneSeconds, logger), logger),
		Render:     NewRenderStage(cfg, render.New(tool, logger), logger),
	}
}
