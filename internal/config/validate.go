package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable. Collaborator API keys are not
// checked here; stages that need them verify presence via the Ensure* helpers
// so offline commands (plan, render, status) work without credentials.
func (c *Config) Validate() error {
	if err := c.validatePlanner(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlanner() error {
	if c.Planner.MinSceneSeconds <= 0 {
		return errors.New("planner.min_scene_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.FrameRate <= 0 {
		return errors.New("render.frame_rate must be positive")
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return errors.New("render.width and render.height must be positive")
	}
	if c.Render.Width%2 != 0 || c.Render.Height%2 != 0 {
		return errors.New("render.width and render.height must be even for yuv420p output")
	}
	if c.Render.CrossfadeSeconds < 0 {
		return errors.New("render.crossfade_seconds must not be negative")
	}
	if c.Render.CrossfadeSeconds > 0 && c.Render.CrossfadeSeconds >= c.Planner.MinSceneSeconds {
		return fmt.Errorf(
			"render.crossfade_seconds (%.2f) must be shorter than planner.min_scene_seconds (%.2f)",
			c.Render.CrossfadeSeconds, c.Planner.MinSceneSeconds)
	}
	return nil
}

func (c *Config) validateTTS() error {
	if c.TTS.SpeedRatio <= 0 {
		return errors.New("tts.speed_ratio must be positive")
	}
	if tag := strings.TrimSpace(c.TTS.Language); tag != "" {
		if _, err := language.Parse(tag); err != nil {
			return fmt.Errorf("tts.language: unrecognized tag %q", tag)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.MaxAttempts <= 0 {
		return errors.New("workflow.max_attempts must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

// EnsureLLMCredentials verifies the script source can be called.
func (c *Config) EnsureLLMCredentials() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key is required. Set MARKETREEL_LLM_API_KEY or edit the config file (create with 'marketreel config init')")
	}
	return nil
}

// EnsureTTSCredentials verifies the narration source can be called.
func (c *Config) EnsureTTSCredentials() error {
	if strings.TrimSpace(c.TTS.AccessToken) == "" {
		return errors.New("tts.access_token is required. Set MARKETREEL_TTS_ACCESS_TOKEN or edit the config file")
	}
	if strings.TrimSpace(c.TTS.AppID) == "" {
		return errors.New("tts.app_id is required")
	}
	return nil
}

// EnsureImageCredentials verifies the image source can be called.
func (c *Config) EnsureImageCredentials() error {
	if strings.TrimSpace(c.Images.APIKey) == "" {
		return errors.New("images.api_key is required. Set MARKETREEL_IMAGE_API_KEY or edit the config file")
	}
	return nil
}
