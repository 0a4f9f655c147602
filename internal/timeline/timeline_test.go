package timeline_test

import (
	"errors"
	"path/filepath"
	"testing"

	"marketreel/internal/services"
	"marketreel/internal/timeline"
)

func validTimeline() *timeline.Timeline {
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

func TestValidateAcceptsTiling(t *testing.T) {
	if err := validTimeline().Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateRejectsGapsOverlapsAndShortfall(t *testing.T) {
	gapped := validTimeline()
	gapped.Scenes[1].Start = 6.5
	if err := gapped.Validate(); !errors.Is(err, services.ErrValidation) {
		t.Errorf("gap not rejected: %v", err)
	}

	overlapping := validTimeline()
	overlapping.Scenes[1].Start = 5.5
	if err := overlapping.Validate(); !errors.Is(err, services.ErrValidation) {
		t.Errorf("overlap not rejected: %v", err)
	}

	short := validTimeline()
	short.TotalDuration = 10
	if err := short.Validate(); !errors.Is(err, services.ErrValidation) {
		t.Errorf("shortfall not rejected: %v", err)
	}

	empty := &timeline.Timeline{TotalDuration: 9}
	if err := empty.Validate(); !errors.Is(err, services.ErrValidation) {
		t.Errorf("empty timeline not rejected: %v", err)
	}
}

func TestSaveLoadRoundsTimes(t *testing.T) {
	tl := validTimeline()
	tl.Scenes[0].End = 6.00049
	tl.Scenes[1].Start = 6.00049

	path := filepath.Join(t.TempDir(), "timeline.json")
	if err := tl.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := timeline.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Scenes[0].End != 6.0 {
		t.Errorf("boundary not rounded to milliseconds: %v", loaded.Scenes[0].End)
	}
	if loaded.Title != "Test Report" || loaded.FrameRate != 24 {
		t.Errorf("metadata lost in round trip: %+v", loaded)
	}
}

func TestLoadRejectsInvalidArtifact(t *testing.T) {
	tl := validTimeline()
	tl.Scenes[1].TopicID = ""
	path := filepath.Join(t.TempDir(), "timeline.json")

	if err := tl.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := timeline.Load(path); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("invalid artifact not rejected on load: %v", err)
	}
}

func TestSegmentsRoundTrip(t *testing.T) {
	segments := []timeline.TimedSegment{
		{Text: "Markets rose", TopicID: "A", Ordinal: 0, Start: 0, End: 4.1239},
		{Text: "Bonds fell", TopicID: "B", Ordinal: 1, Start: 4.1239, End: 9},
	}
	path := filepath.Join(t.TempDir(), "segments.json")
	if err := timeline.SaveSegments(path, segments); err != nil {
		t.Fatalf("SaveSegments failed: %v", err)
	}
	loaded, err := timeline.LoadSegments(path)
	if err != nil {
		t.Fatalf("LoadSegments failed: %v", err)
	}
	if len(loaded) != 2 || loaded[0].End != 4.124 {
		t.Fatalf("unexpected round trip result: %+v", loaded)
	}
}
