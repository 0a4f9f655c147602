package plan

import (
	"fmt"
	"log/slog"
	"strings"

	"marketreel/internal/asset"
	"marketreel/internal/logging"
	"marketreel/internal/services"
	"marketreel/internal/timeline"
)

// Planner turns aligned segments into the scene timeline handed to the
// renderer.
type Planner struct {
	minScene float64
	logger   *slog.Logger
}

// New constructs a planner with the configured minimum scene duration.
func New(minSceneSeconds float64, logger *slog.Logger) *Planner {
	return &Planner{
		minScene: minSceneSeconds,
		logger:   logging.NewComponentLogger(logger, "planner"),
	}
}

// Inputs carries everything the planner needs for one run.
type Inputs struct {
	Title     string
	TradeDate string
	AudioPath string
	FrameRate int
	Segments  []timeline.TimedSegment
	Images    asset.Library
}

// Plan merges consecutive same-topic segments into scenes, resolves each
// topic to its illustration, and enforces the minimum scene duration by
// borrowing from neighbors. The result tiles the narration exactly; repeated
// runs over the same inputs produce identical timelines.
func (p *Planner) Plan(in Inputs) (*timeline.Timeline, error) {
	if len(in.Segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "planning", "plan scenes",
			"no aligned segments", nil)
	}

	scenes := mergeByTopic(in.Segments)
	for i := range scenes {
		path, ok := in.Images.PathFor(scenes[i].TopicID)
		if !ok {
			return nil, services.Wrap(services.ErrUnresolvedTopic, "planning", "resolve illustrations",
				fmt.Sprintf("topic %s has no illustration", scenes[i].TopicID), nil)
		}
		scenes[i].ImagePath = path
	}

	p.enforceMinimum(scenes)

	result := &timeline.Timeline{
		Title:         in.Title,
		TradeDate:     in.TradeDate,
		AudioPath:     in.AudioPath,
		TotalDuration: scenes[len(scenes)-1].End,
		FrameRate:     in.FrameRate,
		Scenes:        scenes,
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	p.logger.Info("timeline planned",
		logging.Int("scenes", len(scenes)),
		logging.String("total", fmt.Sprintf("%.3fs", result.TotalDuration)),
	)
	return result, nil
}

// mergeByTopic collapses consecutive segments sharing a topic into one scene
// whose subtitle is the ordered concatenation of the merged texts.
func mergeByTopic(segments []timeline.TimedSegment) []timeline.SceneInterval {
	var scenes []timeline.SceneInterval
	var texts []string
	for i, seg := range segments {
		if i > 0 && seg.TopicID == segments[i-1].TopicID {
			last := &scenes[len(scenes)-1]
			last.End = seg.End
			texts = append(texts, seg.Text)
			last.Subtitle = strings.Join(texts, " ")
			continue
		}
		texts = []string{seg.Text}
		scenes = append(scenes, timeline.SceneInterval{
			Start:    seg.Start,
			End:      seg.End,
			TopicID:  seg.TopicID,
			Subtitle: seg.Text,
		})
	}
	return scenes
}

// enforceMinimum grows below-minimum scenes by moving shared boundaries. Each
// short scene borrows from its longer neighbor first, then the other one, and
// a donor is never pushed below the minimum itself. A scene that stays short
// because neither neighbor can donate is flagged rather than failed.
func (p *Planner) enforceMinimum(scenes []timeline.SceneInterval) {
	if p.minScene <= 0 || len(scenes) < 2 {
		return
	}
	for i := range scenes {
		deficit := p.minScene - scenes[i].Duration()
		if deficit <= 0 {
			continue
		}
		for _, j := range donorOrder(scenes, i) {
			take := min(deficit, scenes[j].Duration()-p.minScene)
			if take <= 0 {
				continue
			}
			if j < i {
				scenes[j].End -= take
				scenes[i].Start -= take
			} else {
				scenes[j].Start += take
				scenes[i].End += take
			}
			deficit -= take
			if deficit <= 0 {
				break
			}
		}
		if deficit > 0 {
			scenes[i].Flagged = true
			p.logger.Warn("scene stays below minimum duration",
				logging.String("topic", scenes[i].TopicID),
				logging.String("duration", fmt.Sprintf("%.3fs", scenes[i].Duration())),
			)
		}
	}
}

// donorOrder lists the neighbor indices of scene i, longer neighbor first.
func donorOrder(scenes []timeline.SceneInterval, i int) []int {
	prev, next := i-1, i+1
	switch {
	case prev < 0:
		return []int{next}
	case next >= len(scenes):
		return []int{prev}
	case scenes[next].Duration() > scenes[prev].Duration():
		return []int{next, prev}
	default:
		return []int{prev, next}
	}
}
