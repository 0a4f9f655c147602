package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"marketreel/internal/logging"
	"marketreel/internal/services"
	"marketreel/internal/services/ffmpeg"
	"marketreel/internal/timeline"
)

// Options captures the render settings for one invocation.
type Options struct {
	Width            int
	Height           int
	CrossfadeSeconds float64
	BurnSubtitles    bool
	SubtitlePath     string
}

// Renderer drives a single external render per timeline.
type Renderer struct {
	tool   ffmpeg.Client
	logger *slog.Logger
}

// New constructs a renderer over the given media tool.
func New(tool ffmpeg.Client, logger *slog.Logger) *Renderer {
	return &Renderer{
		tool:   tool,
		logger: logging.NewComponentLogger(logger, "renderer"),
	}
}

// Render produces the final video at outputPath in one external invocation.
// A failed or cancelled render never leaves a partial file behind.
func (r *Renderer) Render(ctx context.Context, tl *timeline.Timeline, opts Options, outputPath string) error {
	if err := tl.Validate(); err != nil {
		return err
	}
	if opts.CrossfadeSeconds > 0 {
		for _, scene := range tl.Scenes {
			if scene.Duration() <= opts.CrossfadeSeconds {
				return services.Wrap(services.ErrRender, "rendering", "build command",
					fmt.Sprintf("crossfade %.3fs does not fit scene on topic %s", opts.CrossfadeSeconds, scene.TopicID), nil)
			}
		}
	}

	args := BuildArgs(tl, opts, outputPath)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("starting render",
		logging.Int("scenes", len(tl.Scenes)),
		logging.String("output", outputPath),
	)

	if err := r.tool.Run(ctx, args); err != nil {
		if removeErr := os.Remove(outputPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.Warn("could not remove partial output", logging.Error(removeErr))
		}
		if ctx.Err() != nil {
			return services.Wrap(services.ErrRender, "rendering", "run ffmpeg", "render cancelled", ctx.Err())
		}
		return services.Wrap(services.ErrRender, "rendering", "run ffmpeg", "", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return services.Wrap(services.ErrRender, "rendering", "verify output",
			"render reported success but produced no file", err)
	}

	logger.Info("render complete", logging.String("output", outputPath))
	return nil
}

// BuildArgs assembles the full ffmpeg argument list for a timeline. One
// looped image input per scene, the narration as the final input, a filter
// graph that scales, concatenates (or cross-fades) the scenes, and a single
// H.264/AAC output. All durations use fixed three-decimal formatting so the
// same timeline always yields the same command.
func BuildArgs(tl *timeline.Timeline, opts Options, outputPath string) []string {
	fade := opts.CrossfadeSeconds
	n := len(tl.Scenes)

	args := []string{"-y"}
	for i, scene := range tl.Scenes {
		args = append(args,
			"-loop", "1",
			"-t", formatSeconds(inputDuration(scene.Duration(), fade, i, n)),
			"-r", strconv.Itoa(tl.FrameRate),
			"-i", scene.ImagePath,
		)
	}
	args = append(args, "-i", tl.AudioPath)

	args = append(args, "-filter_complex", buildFilter(tl, opts))
	args = append(args,
		"-map", "[outv]",
		"-map", fmt.Sprintf("%d:a", n),
		"-c:v", "libx264",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-t", formatSeconds(tl.TotalDuration),
		outputPath,
	)
	return args
}

// inputDuration extends a scene's input so the cross-fade window at each
// interior boundary is carved half from each neighbor. Without a fade the
// input simply lasts the scene duration.
func inputDuration(duration, fade float64, index, count int) float64 {
	if fade <= 0 || count < 2 {
		return duration
	}
	extended := duration
	if index > 0 {
		extended += fade / 2
	}
	if index < count-1 {
		extended += fade / 2
	}
	return extended
}

func buildFilter(tl *timeline.Timeline, opts Options) string {
	var b strings.Builder
	n := len(tl.Scenes)
	for i := range tl.Scenes {
		fmt.Fprintf(&b, "[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1[v%d];",
			i, opts.Width, opts.Height, opts.Width, opts.Height, i)
	}

	videoLabel := "[video]"
	if opts.CrossfadeSeconds > 0 && n > 1 {
		// Chained xfades: each offset is the boundary minus half the fade
		// window, keeping total duration equal to the timeline's.
		fade := opts.CrossfadeSeconds
		prev := "[v0]"
		for i := 1; i < n; i++ {
			out := fmt.Sprintf("[x%d]", i)
			if i == n-1 {
				out = videoLabel
			}
			offset := tl.Scenes[i].Start - fade/2
			fmt.Fprintf(&b, "%s[v%d]xfade=transition=fade:duration=%s:offset=%s%s;",
				prev, i, formatSeconds(fade), formatSeconds(offset), out)
			prev = out
		}
	} else if n > 1 {
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "[v%d]", i)
		}
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=0%s;", n, videoLabel)
	} else {
		fmt.Fprintf(&b, "[v0]null%s;", videoLabel)
	}

	if opts.BurnSubtitles && opts.SubtitlePath != "" {
		fmt.Fprintf(&b, "%ssubtitles=%s[outv]", videoLabel, escapeFilterPath(opts.SubtitlePath))
	} else {
		fmt.Fprintf(&b, "%snull[outv]", videoLabel)
	}
	return b.String()
}

// formatSeconds renders a duration with fixed three-decimal precision.
func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(timeline.Round(seconds), 'f', 3, 64)
}

// escapeFilterPath quotes a path for use inside a filter graph.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return "'" + replacer.Replace(path) + "'"
}
