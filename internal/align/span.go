package align

import (
	"encoding/json"
	"fmt"
	"os"

	"marketreel/internal/timeline"
)

// Span is one recognized speech unit on the narration track, in seconds.
type Span struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SaveSpans writes recognition spans as indented JSON with rounded times.
func SaveSpans(path string, spans []Span) error {
	normalized := make([]Span, len(spans))
	for i, span := range spans {
		span.Start = timeline.Round(span.Start)
		span.End = timeline.Round(span.End)
		normalized[i] = span
	}
	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spans: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write spans: %w", err)
	}
	return nil
}

// LoadSpans reads a recognition-span artifact.
func LoadSpans(path string) ([]Span, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spans: %w", err)
	}
	var spans []Span
	if err := json.Unmarshal(data, &spans); err != nil {
		return nil, fmt.Errorf("parse spans: %w", err)
	}
	return spans, nil
}
