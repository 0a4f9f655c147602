package script

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"marketreel/internal/services"
)

// Segment is one contiguous unit of narration text. Segments are created by
// the script generator and are read-only thereafter.
type Segment struct {
	Text    string `json:"text"`
	TopicID string `json:"topic_id"`
	Ordinal int    `json:"ordinal"`
}

// Topic binds a topic identifier to the visual prompt used to generate its
// illustration.
type Topic struct {
	ID           string `json:"id"`
	VisualPrompt string `json:"visual_prompt"`
}

// Script is the full generated narration plan for one run.
type Script struct {
	Title     string    `json:"title"`
	TradeDate string    `json:"trade_date"`
	Session   string    `json:"session"`
	Segments  []Segment `json:"segments"`
	Topics    []Topic   `json:"topics"`
}

// Validate enforces the segment invariants: ordinals are unique, contiguous,
// ascending from zero; every segment has text and resolves to a declared topic.
func (s *Script) Validate() error {
	if s == nil || len(s.Segments) == 0 {
		return services.Wrap(services.ErrValidation, "scripted", "validate script", "script has no segments", nil)
	}
	topics := make(map[string]struct{}, len(s.Topics))
	for _, topic := range s.Topics {
		if strings.TrimSpace(topic.ID) == "" {
			return services.Wrap(services.ErrValidation, "scripted", "validate script", "topic with empty id", nil)
		}
		if _, dup := topics[topic.ID]; dup {
			return services.Wrap(services.ErrValidation, "scripted", "validate script",
				fmt.Sprintf("duplicate topic %q", topic.ID), nil)
		}
		topics[topic.ID] = struct{}{}
	}
	for i, seg := range s.Segments {
		if seg.Ordinal != i {
			return services.Wrap(services.ErrValidation, "scripted", "validate script",
				fmt.Sprintf("segment %d has ordinal %d; ordinals must be contiguous from zero", i, seg.Ordinal), nil)
		}
		if strings.TrimSpace(seg.Text) == "" {
			return services.Wrap(services.ErrValidation, "scripted", "validate script",
				fmt.Sprintf("segment %d has empty text", i), nil)
		}
		if _, ok := topics[seg.TopicID]; !ok {
			return services.Wrap(services.ErrValidation, "scripted", "validate script",
				fmt.Sprintf("segment %d references undeclared topic %q", i, seg.TopicID), nil)
		}
	}
	return nil
}

// FullNarration joins all segment text in order, the exact string handed to
// the narration synthesizer.
func (s *Script) FullNarration() string {
	parts := make([]string, 0, len(s.Segments))
	for _, seg := range s.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// TopicPrompt returns the visual prompt for a topic, if declared.
func (s *Script) TopicPrompt(topicID string) (string, bool) {
	for _, topic := range s.Topics {
		if topic.ID == topicID {
			return topic.VisualPrompt, true
		}
	}
	return "", false
}

// Save persists the script as a run artifact.
func (s *Script) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal script: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads and validates a persisted script artifact.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
