package render_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"marketreel/internal/render"
	"marketreel/internal/services"
	"marketreel/internal/timeline"
)

func testTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		Title:         "Test Report",
		TradeDate:     "2026-08-21",
		AudioPath:     "narration.mp3",
		TotalDuration: 9,
		FrameRate:     24,
		Scenes: []timeline.SceneInterval{
			{Start: 0, End: 6, TopicID: "A", ImagePath: "images/A.png", Subtitle: "Markets rose"},
			{Start: 6, End: 9, TopicID: "B", ImagePath: "images/B.png", Subtitle: "Bonds fell"},
		},
	}
}

func testOptions() render.Options {
	return render.Options{Width: 1920, Height: 1080}
}

type fakeTool struct {
	args    []string
	err     error
	partial string
}

func (f *fakeTool) Duration(context.Context, string) (float64, error) { return 0, nil }

func (f *fakeTool) Run(ctx context.Context, args []string) error {
	f.args = append([]string(nil), args...)
	if f.partial != "" {
		os.WriteFile(f.partial, []byte("partial"), 0o644)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return f.err
}

func TestBuildArgsIsDeterministic(t *testing.T) {
	tl := testTimeline()
	one := render.BuildArgs(tl, testOptions(), "report.mp4")
	two := render.BuildArgs(tl, testOptions(), "report.mp4")
	if !reflect.DeepEqual(one, two) {
		t.Fatal("repeated builds produced different commands")
	}
	joined := strings.Join(one, " ")
	if !strings.Contains(joined, "-t 6.000") || !strings.Contains(joined, "-t 3.000") {
		t.Errorf("scene durations not fixed-precision: %s", joined)
	}
	if !strings.Contains(joined, "concat=n=2:v=1:a=0") {
		t.Errorf("missing concat filter: %s", joined)
	}
	if !strings.Contains(joined, "-map [outv] -map 2:a") {
		t.Errorf("audio not mapped from last input: %s", joined)
	}
	if !strings.Contains(joined, "libx264") || !strings.Contains(joined, "yuv420p") {
		t.Errorf("codec settings missing: %s", joined)
	}
}

func TestBuildArgsCarvesCrossfadeSymmetrically(t *testing.T) {
	tl := testTimeline()
	opts := testOptions()
	opts.CrossfadeSeconds = 1.0

	joined := strings.Join(render.BuildArgs(tl, opts, "report.mp4"), " ")
	// Interior boundary at 6s: each neighbor contributes half the window, so
	// inputs run 6.5s and 3.5s and the fade starts at 5.5s.
	if !strings.Contains(joined, "-t 6.500") || !strings.Contains(joined, "-t 3.500") {
		t.Errorf("inputs not extended by half the fade window: %s", joined)
	}
	if !strings.Contains(joined, "xfade=transition=fade:duration=1.000:offset=5.500") {
		t.Errorf("fade window not centered on the boundary: %s", joined)
	}
	if !strings.Contains(joined, "-t 9.000 report.mp4") {
		t.Errorf("total duration changed by crossfade: %s", joined)
	}
}

func TestBuildArgsBurnsSubtitles(t *testing.T) {
	opts := testOptions()
	opts.BurnSubtitles = true
	opts.SubtitlePath = "narration.srt"

	joined := strings.Join(render.BuildArgs(testTimeline(), opts, "report.mp4"), " ")
	if !strings.Contains(joined, "subtitles='narration.srt'") {
		t.Errorf("subtitles filter missing: %s", joined)
	}
}

func TestRenderRemovesPartialOutputOnFailure(t *testing.T) {
	output := filepath.Join(t.TempDir(), "report.mp4")
	tool := &fakeTool{err: fmt.Errorf("exit status 1"), partial: output}

	err := render.New(tool, nil).Render(context.Background(), testTimeline(), testOptions(), output)
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Error("render failures must not be retried")
	}
	if _, statErr := os.Stat(output); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("partial output left behind after failure")
	}
}

func TestRenderRemovesPartialOutputOnCancel(t *testing.T) {
	output := filepath.Join(t.TempDir(), "report.mp4")
	tool := &fakeTool{partial: output}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := render.New(tool, nil).Render(ctx, testTimeline(), testOptions(), output)
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	if _, statErr := os.Stat(output); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("partial output left behind after cancellation")
	}
}

func TestRenderRejectsOversizedCrossfade(t *testing.T) {
	opts := testOptions()
	opts.CrossfadeSeconds = 4.0 // second scene only lasts 3s

	tool := &fakeTool{}
	err := render.New(tool, nil).Render(context.Background(), testTimeline(), opts, "report.mp4")
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected ErrRender, got %v", err)
	}
	if tool.args != nil {
		t.Error("ffmpeg must not run when the command cannot be built")
	}
}

func TestRenderVerifiesOutputExists(t *testing.T) {
	output := filepath.Join(t.TempDir(), "report.mp4")
	tool := &fakeTool{} // succeeds but writes nothing

	err := render.New(tool, nil).Render(context.Background(), testTimeline(), testOptions(), output)
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected ErrRender for missing output, got %v", err)
	}
}
