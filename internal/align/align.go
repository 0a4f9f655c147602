package align

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"marketreel/internal/logging"
	"marketreel/internal/script"
	"marketreel/internal/services"
	"marketreel/internal/timeline"
)

// Aligner maps script segments onto the narration track using recognized
// spans from synthesis.
type Aligner struct {
	logger *slog.Logger
}

// New constructs an aligner.
func New(logger *slog.Logger) *Aligner {
	return &Aligner{logger: logging.NewComponentLogger(logger, "aligner")}
}

// carry holds the unconsumed tail of a span that straddled a segment
// boundary, with the boundary time already carved out proportionally.
type carry struct {
	text  string
	start float64
	end   float64
}

// Align assigns each segment its spoken interval. Matching walks spans and
// segments with a single monotonic cursor, comparing alphanumeric-normalized
// text. A span that straddles a segment boundary is split at a point
// proportional to the character counts on each side. Leading silence is
// absorbed into the first segment, trailing silence into the last, and
// interior gaps into the preceding segment, so the result tiles
// [0, totalDuration) exactly.
func (a *Aligner) Align(segments []script.Segment, spans []Span, totalDuration float64) ([]timeline.TimedSegment, error) {
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrAlignment, "aligning", "align segments",
			"no segments to align", nil)
	}
	usable := 0
	for _, span := range spans {
		if normalize(span.Text) != "" {
			usable++
		}
	}
	if usable == 0 {
		return nil, services.Wrap(services.ErrAlignment, "aligning", "align segments",
			"no usable recognition spans", nil)
	}

	timed := make([]timeline.TimedSegment, 0, len(segments))
	cursor := 0
	var pending *carry

	for _, seg := range segments {
		remaining := normalize(seg.Text)
		if remaining == "" {
			return nil, services.Wrap(services.ErrAlignment, "aligning", "align segments",
				fmt.Sprintf("segment %d has no speakable text", seg.Ordinal), nil)
		}

		matched := false
		var segStart, segEnd float64

		if pending != nil {
			consumed, boundary, rest := consume(remaining, pending.text, pending.start, pending.end)
			if consumed == "" {
				return nil, services.Wrap(services.ErrAlignment, "aligning", "align segments",
					fmt.Sprintf("segment %d does not continue the narration at %.3fs", seg.Ordinal, pending.start), nil)
			}
			segStart, segEnd = pending.start, boundary
			matched = true
			remaining = strings.TrimPrefix(remaining, consumed)
			if rest != nil {
				pending = rest
			} else {
				pending = nil
			}
		}

		for remaining != "" && cursor < len(spans) {
			span := spans[cursor]
			spanText := normalize(span.Text)
			if spanText == "" {
				cursor++
				continue
			}
			consumed, boundary, rest := consume(remaining, spanText, span.Start, span.End)
			if consumed == "" {
				break
			}
			if !matched {
				segStart = span.Start
				matched = true
			}
			segEnd = boundary
			remaining = strings.TrimPrefix(remaining, consumed)
			cursor++
			if rest != nil {
				pending = rest
			}
		}

		if !matched {
			return nil, services.Wrap(services.ErrAlignment, "aligning", "align segments",
				fmt.Sprintf("segment %d %q matched no recognition spans", seg.Ordinal, seg.Text), nil)
		}
		if remaining != "" {
			a.logger.Warn("segment only partially matched",
				logging.Int("ordinal", seg.Ordinal),
				logging.String("unmatched", remaining),
			)
		}

		timed = append(timed, timeline.TimedSegment{
			Text:    seg.Text,
			TopicID: seg.TopicID,
			Ordinal: seg.Ordinal,
			Start:   segStart,
			End:     segEnd,
		})
	}

	snapBoundaries(timed, totalDuration)
	return timed, nil
}

// consume matches the head of remaining against spanText over the interval
// [start, end). It returns the consumed normalized text, the time where the
// consumed portion ends, and a residual carry when the span straddles the
// segment boundary. An empty consumed string means no match.
func consume(remaining, spanText string, start, end float64) (string, float64, *carry) {
	if strings.HasPrefix(remaining, spanText) {
		return spanText, end, nil
	}
	if strings.HasPrefix(spanText, remaining) {
		fraction := float64(len(remaining)) / float64(len(spanText))
		boundary := start + fraction*(end-start)
		rest := &carry{text: spanText[len(remaining):], start: boundary, end: end}
		return remaining, boundary, rest
	}
	return "", 0, nil
}

// snapBoundaries makes the intervals tile [0, totalDuration): the first
// segment starts at zero, each interior gap joins the preceding segment, and
// the last segment runs to the end of the audio.
func snapBoundaries(timed []timeline.TimedSegment, totalDuration float64) {
	if len(timed) == 0 {
		return
	}
	timed[0].Start = 0
	for i := 0; i < len(timed)-1; i++ {
		if timed[i+1].Start < timed[i].End {
			timed[i+1].Start = timed[i].End
		}
		timed[i].End = timed[i+1].Start
	}
	last := len(timed) - 1
	if totalDuration > timed[last].End {
		timed[last].End = totalDuration
	}
}

// normalize lowercases text and strips everything but letters and digits,
// matching how the synthesis frontend segments spoken units.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
