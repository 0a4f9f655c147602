package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// outputTail limits how much tool output an error carries.
const outputTail = 2048

// Client defines the media tool behaviour the renderer depends on.
type Client interface {
	Duration(ctx context.Context, mediaPath string) (float64, error)
	Run(ctx context.Context, args []string) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinaries overrides the default binary names.
func WithBinaries(ffmpegBin, ffprobeBin string) Option {
	return func(c *CLI) {
		if ffmpegBin != "" {
			c.ffmpegBin = ffmpegBin
		}
		if ffprobeBin != "" {
			c.ffprobeBin = ffprobeBin
		}
	}
}

// CLI wraps the ffmpeg and ffprobe command-line tools.
type CLI struct {
	ffmpegBin  string
	ffprobeBin string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{ffmpegBin: "ffmpeg", ffprobeBin: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Duration probes a media file and returns its duration in seconds.
func (c *CLI) Duration(ctx context.Context, mediaPath string) (float64, error) {
	if mediaPath == "" {
		return 0, errors.New("media path required")
	}
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	}
	cmd := commandContext(ctx, c.ffprobeBin, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", mediaPath, err)
	}
	text := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("probe %s: unexpected output %q", mediaPath, text)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("probe %s: non-positive duration %f", mediaPath, duration)
	}
	return duration, nil
}

// Run executes ffmpeg with the supplied arguments. On failure the error
// carries the tail of the tool's combined output.
func (c *CLI) Run(ctx context.Context, args []string) error {
	cmd := commandContext(ctx, c.ffmpegBin, args...) //nolint:gosec
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(buf.Bytes()))
	}
	return nil
}

func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > outputTail {
		text = "…" + text[len(text)-outputTail:]
	}
	return text
}

var _ Client = (*CLI)(nil)
