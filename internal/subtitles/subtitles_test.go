package subtitles_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/asticode/go-astisub"

	"marketreel/internal/subtitles"
	"marketreel/internal/timeline"
)

func TestWriteSRTCoversSegmentIntervals(t *testing.T) {
	segments := []timeline.TimedSegment{
		{Text: "Markets rose", TopicID: "A", Ordinal: 0, Start: 0, End: 4.5},
		{Text: "Bonds fell", TopicID: "B", Ordinal: 1, Start: 4.5, End: 9},
	}
	path := filepath.Join(t.TempDir(), "narration.srt")

	if err := subtitles.WriteSRT(path, segments); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}
	subs, err := astisub.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen subtitles: %v", err)
	}
	if len(subs.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(subs.Items))
	}
	if subs.Items[0].StartAt != 0 || subs.Items[0].EndAt != 4500*time.Millisecond {
		t.Errorf("first item interval = [%v, %v]", subs.Items[0].StartAt, subs.Items[0].EndAt)
	}
	if got := subs.Items[1].String(); got != "Bonds fell" {
		t.Errorf("second item text = %q", got)
	}
}

func TestWriteSRTWrapsLongLines(t *testing.T) {
	long := "The composite index extended its winning streak as turnover climbed past the trillion mark"
	segments := []timeline.TimedSegment{
		{Text: long, TopicID: "A", Ordinal: 0, Start: 0, End: 6},
	}
	path := filepath.Join(t.TempDir(), "narration.srt")

	if err := subtitles.WriteSRT(path, segments); err != nil {
		t.Fatalf("WriteSRT failed: %v", err)
	}
	subs, err := astisub.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen subtitles: %v", err)
	}
	if len(subs.Items[0].Lines) < 2 {
		t.Fatalf("expected wrapped lines, got %d", len(subs.Items[0].Lines))
	}
	for _, line := range subs.Items[0].Lines {
		if n := len([]rune(line.String())); n > 42 {
			t.Errorf("line exceeds wrap width: %d runes", n)
		}
	}
}

func TestWriteSRTRejectsEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narration.srt")
	if err := subtitles.WriteSRT(path, nil); err == nil {
		t.Fatal("expected error for empty segment list")
	}
}
