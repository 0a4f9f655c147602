package run

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves the fixed artifact layout under one run directory.
type Paths struct {
	Dir string
}

// NewPaths builds the artifact layout for a run under the runs root.
func NewPaths(runsRoot, runID string) Paths {
	return Paths{Dir: filepath.Join(runsRoot, runID)}
}

// Ensure creates the run directory tree.
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.ImagesDir(), 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}
	return nil
}

// Source is the ingested market snapshot.
func (p Paths) Source() string { return filepath.Join(p.Dir, "source.json") }

// Script is the generated content plan.
func (p Paths) Script() string { return filepath.Join(p.Dir, "script.json") }

// Audio is the synthesized narration track.
func (p Paths) Audio() string { return filepath.Join(p.Dir, "narration.mp3") }

// Timestamps holds the recognition spans from synthesis.
func (p Paths) Timestamps() string { return filepath.Join(p.Dir, "timestamps.json") }

// Segments holds the aligned timed segments.
func (p Paths) Segments() string { return filepath.Join(p.Dir, "segments.json") }

// ImagesDir holds one normalized illustration per topic.
func (p Paths) ImagesDir() string { return filepath.Join(p.Dir, "images") }

// ImageFor is the illustration path for a topic.
func (p Paths) ImageFor(topicID string) string {
	return filepath.Join(p.ImagesDir(), topicID+".png")
}

// Subtitles is the SRT burned into the video.
func (p Paths) Subtitles() string { return filepath.Join(p.Dir, "narration.srt") }

// Timeline is the planned scene timeline.
func (p Paths) Timeline() string { return filepath.Join(p.Dir, "timeline.json") }

// Video is the rendered report inside the run directory.
func (p Paths) Video() string { return filepath.Join(p.Dir, "report.mp4") }

// Remove deletes the run directory and everything in it.
func (p Paths) Remove() error {
	return os.RemoveAll(p.Dir)
}
