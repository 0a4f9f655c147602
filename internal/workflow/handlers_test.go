package workflow

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"marketreel/internal/logging"
	"marketreel/internal/marketdata"
	"marketreel/internal/plan"
	"marketreel/internal/run"
	"marketreel/internal/testsupport"
	"marketreel/internal/timeline"
)

func writeSnapshotFixture(t *testing.T, path string) {
	t.Helper()
	snapshot := &marketdata.Snapshot{
		TradeDate: "2025-06-02",
		Session:   "afternoon",
		Indices: []marketdata.IndexQuote{
			{Name: "Shanghai Composite", CurrentPoint: 3361.52, ChangePercent: 0.42},
		},
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := snapshot.Save(path); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer file.Close()
	if err := png.Encode(file, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestScrapeStageIngestsSnapshot(t *testing.T) {
	source := filepath.Join(t.TempDir(), "snapshot.json")
	writeSnapshotFixture(t, source)

	cfg := testsupport.NewConfig(t, testsupport.WithSourceFile(source))
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "")

	handler := NewScrapeStage(cfg, marketdata.FileSource{Path: cfg.Market.SourceFile}, logging.NewNop())
	if err := handler.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.TradeDate != "2025-06-02" {
		t.Fatalf("trade date = %s, want 2025-06-02", item.TradeDate)
	}
	paths := run.NewPaths(cfg.RunsDir(), item.RunID)
	if item.SourceFile != paths.Source() {
		t.Fatalf("source file = %s, want %s", item.SourceFile, paths.Source())
	}
	if _, err := (marketdata.FileSource{Path: item.SourceFile}).Snapshot(); err != nil {
		t.Fatalf("ingested snapshot unreadable: %v", err)
	}
}

func TestPlanStagePersistsTimeline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMinSceneSeconds(0.5))
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "2025-06-02")
	item.Title = "Market wrap"

	paths := run.NewPaths(cfg.RunsDir(), item.RunID)
	if err := paths.Ensure(); err != nil {
		t.Fatalf("ensure paths: %v", err)
	}
	segments := []timeline.TimedSegment{
		{Text: "Markets rose", TopicID: "markets", Ordinal: 0, Start: 0, End: 5},
		{Text: "Tech led gains", TopicID: "markets", Ordinal: 1, Start: 5, End: 8},
		{Text: "Bonds fell", TopicID: "bonds", Ordinal: 2, Start: 8, End: 11},
	}
	if err := timeline.SaveSegments(paths.Segments(), segments); err != nil {
		t.Fatalf("save segments: %v", err)
	}
	item.SegmentsFile = paths.Segments()
	item.AudioFile = filepath.Join(paths.Dir, "narration.mp3")
	writePNG(t, paths.ImageFor("markets"))
	writePNG(t, paths.ImageFor("bonds"))

	handler := NewPlanStage(cfg, plan.New(cfg.Planner.MinSceneSeconds, logging.NewNop()), logging.NewNop())
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	planned, err := timeline.Load(item.TimelineFile)
	if err != nil {
		t.Fatalf("load timeline: %v", err)
	}
	if len(planned.Scenes) != 2 {
		t.Fatalf("scenes = %d, want 2", len(planned.Scenes))
	}
	if planned.Scenes[0].Subtitle != "Markets rose Tech led gains" {
		t.Fatalf("merged subtitle = %q", planned.Scenes[0].Subtitle)
	}
	if planned.Title != "Market wrap" {
		t.Fatalf("title = %q", planned.Title)
	}
}

func TestDefaultHandlersReportHealthy(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)

	manager := New(cfg, store, DefaultHandlers(cfg, logging.NewNop()), logging.NewNop())
	for _, health := range manager.Health(context.Background()) {
		if !health.Ready {
			t.Fatalf("stage %s not ready: %s", health.Stage, health.Detail)
		}
	}
}
