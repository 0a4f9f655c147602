package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/asticode/go-astisub"

	"marketreel/internal/timeline"
)

// maxLineRunes wraps subtitle lines so burned-in text stays readable at the
// render resolution.
const maxLineRunes = 42

// WriteSRT writes one subtitle item per timed segment, covering the
// segment's interval on the narration track.
func WriteSRT(path string, segments []timeline.TimedSegment) error {
	if len(segments) == 0 {
		return fmt.Errorf("write subtitles: no segments")
	}
	subs := astisub.NewSubtitles()
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		item := &astisub.Item{
			StartAt: toDuration(seg.Start),
			EndAt:   toDuration(seg.End),
		}
		for _, line := range wrap(text, maxLineRunes) {
			item.Lines = append(item.Lines, astisub.Line{
				Items: []astisub.LineItem{{Text: line}},
			})
		}
		subs.Items = append(subs.Items, item)
	}
	if len(subs.Items) == 0 {
		return fmt.Errorf("write subtitles: no subtitle text")
	}
	if err := subs.Write(path); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	return nil
}

func toDuration(seconds float64) time.Duration {
	return time.Duration(timeline.Round(seconds) * float64(time.Second))
}

// wrap splits text into lines of at most width runes, breaking on spaces.
// A single word longer than the width stays on its own line.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	var lines []string
	var current string
	for _, word := range words {
		switch {
		case current == "":
			current = word
		case len([]rune(current))+1+len([]rune(word)) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
