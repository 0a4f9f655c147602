package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config, got exists=true at %s", path)
	}
	if cfg.Render.FrameRate != defaultFrameRate {
		t.Fatalf("expected default frame rate %d, got %d", defaultFrameRate, cfg.Render.FrameRate)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := strings.Join([]string{
		"[planner]",
		"min_scene_seconds = 1.5",
		"[render]",
		"frame_rate = 30",
		"crossfade_seconds = 0.5",
	}, "\n")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if cfg.Planner.MinSceneSeconds != 1.5 {
		t.Errorf("min_scene_seconds = %v, want 1.5", cfg.Planner.MinSceneSeconds)
	}
	if cfg.Render.FrameRate != 30 {
		t.Errorf("frame_rate = %d, want 30", cfg.Render.FrameRate)
	}
	if cfg.Render.CrossfadeSeconds != 0.5 {
		t.Errorf("crossfade_seconds = %v, want 0.5", cfg.Render.CrossfadeSeconds)
	}
}

func TestValidateRejectsCrossfadeLongerThanMinScene(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	cfg.Planner.MinSceneSeconds = 1.0
	cfg.Render.CrossfadeSeconds = 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when crossfade exceeds min scene duration")
	}
}

func TestValidateRejectsOddResolution(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	cfg.Render.Width = 1921
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for odd width")
	}
}

func TestValidateRejectsBadLanguageTag(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	cfg.TTS.Language = "not-a-language-tag!!"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid language tag")
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("MARKETREEL_LLM_API_KEY", "sk-env")
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Fatalf("expected env credential, got %q", cfg.LLM.APIKey)
	}
	if err := cfg.EnsureLLMCredentials(); err != nil {
		t.Fatalf("EnsureLLMCredentials failed: %v", err)
	}
}

func TestEnsureCredentialHelpers(t *testing.T) {
	cfg := Default()
	if err := cfg.EnsureTTSCredentials(); err == nil {
		t.Fatal("expected missing TTS credentials error")
	}
	cfg.TTS.AccessToken = "tok"
	cfg.TTS.AppID = "app"
	if err := cfg.EnsureTTSCredentials(); err != nil {
		t.Fatalf("EnsureTTSCredentials failed: %v", err)
	}
	if err := cfg.EnsureImageCredentials(); err == nil {
		t.Fatal("expected missing image credentials error")
	}
}
