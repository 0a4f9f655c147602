package timeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"marketreel/internal/services"
)

// epsilon is the tolerance for float comparisons on boundaries. Times are
// rounded to millisecond precision before persistence, so anything under
// half a millisecond is noise.
const epsilon = 0.0005

// TimedSegment is one script segment with its spoken interval on the
// narration track, in seconds.
type TimedSegment struct {
	Text    string  `json:"text"`
	TopicID string  `json:"topic_id"`
	Ordinal int     `json:"ordinal"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Duration returns the segment length in seconds.
func (s TimedSegment) Duration() float64 {
	return s.End - s.Start
}

// SceneInterval is one visual scene on the final timeline. Scenes tile
// [0, TotalDuration) with no gaps or overlaps.
type SceneInterval struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	TopicID   string  `json:"topic_id"`
	ImagePath string  `json:"image_path"`
	Subtitle  string  `json:"subtitle"`
	Flagged   bool    `json:"flagged,omitempty"`
}

// Duration returns the scene length in seconds.
func (s SceneInterval) Duration() float64 {
	return s.End - s.Start
}

// Timeline is the fully planned render input: a continuous audio track plus
// the scene intervals that cover it.
type Timeline struct {
	Title         string          `json:"title"`
	TradeDate     string          `json:"trade_date"`
	AudioPath     string          `json:"audio_path"`
	TotalDuration float64         `json:"total_duration"`
	FrameRate     int             `json:"frame_rate"`
	Scenes        []SceneInterval `json:"scenes"`
}

// Round snaps a time value to millisecond precision. All persisted times go
// through this so repeated runs over the same inputs produce identical
// artifacts.
func Round(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}

// Validate checks the tiling invariant: scenes start at zero, are contiguous
// and non-overlapping, have positive duration, and end at TotalDuration.
func (t *Timeline) Validate() error {
	if t.TotalDuration <= 0 {
		return services.Wrap(services.ErrValidation, "planning", "validate timeline",
			fmt.Sprintf("total duration %.3f must be positive", t.TotalDuration), nil)
	}
	if len(t.Scenes) == 0 {
		return services.Wrap(services.ErrValidation, "planning", "validate timeline",
			"timeline has no scenes", nil)
	}
	cursor := 0.0
	for i, scene := range t.Scenes {
		if math.Abs(scene.Start-cursor) > epsilon {
			return services.Wrap(services.ErrValidation, "planning", "validate timeline",
				fmt.Sprintf("scene %d starts at %.3f, expected %.3f", i, scene.Start, cursor), nil)
		}
		if scene.End-scene.Start <= epsilon {
			return services.Wrap(services.ErrValidation, "planning", "validate timeline",
				fmt.Sprintf("scene %d has non-positive duration", i), nil)
		}
		if scene.TopicID == "" {
			return services.Wrap(services.ErrValidation, "planning", "validate timeline",
				fmt.Sprintf("scene %d has no topic", i), nil)
		}
		cursor = scene.End
	}
	if math.Abs(cursor-t.TotalDuration) > epsilon {
		return services.Wrap(services.ErrValidation, "planning", "validate timeline",
			fmt.Sprintf("scenes end at %.3f, total duration is %.3f", cursor, t.TotalDuration), nil)
	}
	return nil
}

// Save writes the timeline as indented JSON with all times rounded to
// millisecond precision.
func (t *Timeline) Save(path string) error {
	normalized := *t
	normalized.TotalDuration = Round(t.TotalDuration)
	normalized.Scenes = make([]SceneInterval, len(t.Scenes))
	for i, scene := range t.Scenes {
		scene.Start = Round(scene.Start)
		scene.End = Round(scene.End)
		normalized.Scenes[i] = scene
	}
	data, err := json.MarshalIndent(&normalized, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create timeline directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write timeline: %w", err)
	}
	return nil
}

// Load reads and validates a timeline artifact.
func Load(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	var t Timeline
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse timeline: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveSegments writes aligned segments as indented JSON with rounded times.
func SaveSegments(path string, segments []TimedSegment) error {
	normalized := make([]TimedSegment, len(segments))
	for i, seg := range segments {
		seg.Start = Round(seg.Start)
		seg.End = Round(seg.End)
		normalized[i] = seg
	}
	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write segments: %w", err)
	}
	return nil
}

// LoadSegments reads an aligned-segments artifact.
func LoadSegments(path string) ([]TimedSegment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read segments: %w", err)
	}
	var segments []TimedSegment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("parse segments: %w", err)
	}
	return segments, nil
}
