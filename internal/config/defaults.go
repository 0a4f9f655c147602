package config

const (
	defaultWorkDir   = "~/.local/share/marketreel"
	defaultOutputDir = "~/videos/marketreel"
	defaultLogDir    = "~/.local/share/marketreel/logs"

	defaultLLMBaseURL        = "https://api.siliconflow.cn/v1/chat/completions"
	defaultLLMModel          = "deepseek-ai/DeepSeek-R1"
	defaultLLMTimeoutSeconds = 120

	defaultTTSEndpoint       = "https://openspeech.bytedance.com/api/v1/tts"
	defaultTTSCluster        = "volcano_icl"
	defaultTTSVoice          = "S_DNgMQKiB1"
	defaultTTSLanguage       = "zh"
	defaultTTSSpeedRatio     = 1.0
	defaultTTSTimeoutSeconds = 120

	defaultImagesBaseURL        = "https://ark.cn-beijing.volces.com/api/v3"
	defaultImagesModel          = "doubao-seedream-3-0-t2i-250415"
	defaultImagesSize           = "1024x1024"
	defaultImagesTimeoutSeconds = 120

	defaultMinSceneSeconds = 2.0

	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultFrameRate        = 24
	defaultRenderWidth      = 1920
	defaultRenderHeight     = 1080
	defaultCrossfadeSeconds = 0.0

	defaultMaxAttempts       = 3
	defaultRetryDelaySeconds = 5

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		TTS: TTS{
			Endpoint:       defaultTTSEndpoint,
			Cluster:        defaultTTSCluster,
			Voice:          defaultTTSVoice,
			Language:       defaultTTSLanguage,
			SpeedRatio:     defaultTTSSpeedRatio,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		Images: Images{
			BaseURL:        defaultImagesBaseURL,
			Model:          defaultImagesModel,
			Size:           defaultImagesSize,
			TimeoutSeconds: defaultImagesTimeoutSeconds,
		},
		Planner: Planner{
			MinSceneSeconds: defaultMinSceneSeconds,
		},
		Render: Render{
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
			FrameRate:        defaultFrameRate,
			Width:            defaultRenderWidth,
			Height:           defaultRenderHeight,
			CrossfadeSeconds: defaultCrossfadeSeconds,
			BurnSubtitles:    true,
		},
		Workflow: Workflow{
			MaxAttempts:       defaultMaxAttempts,
			RetryDelaySeconds: defaultRetryDelaySeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
