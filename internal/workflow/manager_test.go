package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"marketreel/internal/config"
	"marketreel/internal/logging"
	"marketreel/internal/run"
	"marketreel/internal/services"
	"marketreel/internal/stage"
	"marketreel/internal/testsupport"
)

// fakeStage records executions and writes the artifacts its pipeline slot is
// expected to leave behind.
type fakeStage struct {
	name    string
	calls   *[]string
	execute func(ctx context.Context, item *run.Run) error
}

func (f *fakeStage) Prepare(ctx context.Context, item *run.Run) error { return nil }

func (f *fakeStage) Execute(ctx context.Context, item *run.Run) error {
	*f.calls = append(*f.calls, f.name)
	if f.execute != nil {
		return f.execute(ctx, item)
	}
	return nil
}

func (f *fakeStage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func touch(t *testing.T, path string) string {
	t.Helper()
	testsupport.WriteFile(t, path, 1)
	return path
}

// fakeHandlers wires a fakeStage into every slot, with optional overrides for
// individual stage behavior.
func fakeHandlers(cfg *config.Config, calls *[]string, overrides map[string]func(ctx context.Context, item *run.Run) error) Handlers {
	build := func(name string, artifact func(paths run.Paths, item *run.Run)) stage.Handler {
		return &fakeStage{
			name:  name,
			calls: calls,
			execute: func(ctx context.Context, item *run.Run) error {
				if override, ok := overrides[name]; ok {
					if err := override(ctx, item); err != nil {
						return err
					}
				}
				artifact(run.NewPaths(cfg.RunsDir(), item.RunID), item)
				return nil
			},
		}
	}
	return Handlers{
		Scrape: build("scrape", func(p run.Paths, item *run.Run) {
			item.SourceFile = p.Source()
		}),
		Script: build("script", func(p run.Paths, item *run.Run) {
			item.ScriptFile = p.Script()
		}),
		Narrate: build("narrate", func(p run.Paths, item *run.Run) {
			item.AudioFile = p.Audio()
			item.SpansFile = p.Timestamps()
		}),
		Illustrate: build("illustrate", func(p run.Paths, item *run.Run) {}),
		Align: build("align", func(p run.Paths, item *run.Run) {
			item.SegmentsFile = p.Segments()
			item.SubtitleFile = p.Subtitles()
		}),
		Plan: build("plan", func(p run.Paths, item *run.Run) {
			item.TimelineFile = p.Timeline()
		}),
		Render: build("render", func(p run.Paths, item *run.Run) {
			item.VideoFile = p.Video()
			item.FinalFile = filepath.Join(cfg.Paths.OutputDir, "market-report-test.mp4")
		}),
	}
}

func TestRunDrivesAllStagesInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryDelaySeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "2025-06-02")

	var calls []string
	manager := New(cfg, store, fakeHandlers(cfg, &calls, nil), logging.NewNop())

	if err := manager.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if item.Status != run.StatusCompleted {
		t.Fatalf("status = %s, want completed", item.Status)
	}

	want := []string{"scrape", "script", "narrate", "illustrate", "align", "plan", "render"}
	if len(calls) != len(want) {
		t.Fatalf("stage calls = %v, want %v", calls, want)
	}
	for i, name := range want {
		if calls[i] != name {
			t.Fatalf("stage %d = %s, want %s", i, calls[i], name)
		}
	}

	stored, err := store.GetByRunID(context.Background(), item.RunID)
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if stored.Status != run.StatusCompleted {
		t.Fatalf("stored status = %s, want completed", stored.Status)
	}
	if stored.FinalFile == "" {
		t.Fatal("final file not persisted")
	}
}

func TestRunRetriesCollaboratorFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxAttempts = 3
	cfg.Workflow.RetryDelaySeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "2025-06-02")

	failures := 2
	var calls []string
	handlers := fakeHandlers(cfg, &calls, map[string]func(ctx context.Context, item *run.Run) error{
		"narrate": func(ctx context.Context, item *run.Run) error {
			if failures > 0 {
				failures--
				return services.Wrap(services.ErrSynthesis, "narrating", "synthesize narration", "", errors.New("upstream 500"))
			}
			return nil
		},
	})
	manager := New(cfg, store, handlers, logging.NewNop())

	if err := manager.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if item.Status != run.StatusCompleted {
		t.Fatalf("status = %s, want completed", item.Status)
	}

	narrations := 0
	for _, name := range calls {
		if name == "narrate" {
			narrations++
		}
	}
	if narrations != 3 {
		t.Fatalf("narrate executed %d times, want 3", narrations)
	}
}

func TestRunExhaustsRetriesAndFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxAttempts = 2
	cfg.Workflow.RetryDelaySeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "2025-06-02")

	var calls []string
	handlers := fakeHandlers(cfg, &calls, map[string]func(ctx context.Context, item *run.Run) error{
		"scrape": func(ctx context.Context, item *run.Run) error {
			return services.Wrap(services.ErrIngest, "scraping", "load snapshot", "", errors.New("feed unavailable"))
		},
	})
	manager := New(cfg, store, handlers, logging.NewNop())

	err := manager.Run(context.Background(), item)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !errors.Is(err, services.ErrIngest) {
		t.Fatalf("error = %v, want ErrIngest", err)
	}
	if item.Status != run.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}
	if len(calls) != 2 {
		t.Fatalf("scrape executed %d times, want 2", len(calls))
	}

	stored, getErr := store.GetByRunID(context.Background(), item.RunID)
	if getErr != nil {
		t.Fatalf("GetByRunID: %v", getErr)
	}
	if stored.Status != run.StatusFailed {
		t.Fatalf("stored status = %s, want failed", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Fatal("error message not persisted")
	}
}

func TestRunFatalFailureNeverRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.MaxAttempts = 5
	cfg.Workflow.RetryDelaySeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "2025-06-02")

	var calls []string
	handlers := fakeHandlers(cfg, &calls, map[string]func(ctx context.Context, item *run.Run) error{
		"align": func(ctx context.Context, item *run.Run) error {
			return services.Wrap(services.ErrAlignment, "aligning", "match segments", "segment matched nothing", nil)
		},
	})
	manager := New(cfg, store, handlers, logging.NewNop())

	err := manager.Run(context.Background(), item)
	if !errors.Is(err, services.ErrAlignment) {
		t.Fatalf("error = %v, want ErrAlignment", err)
	}
	if item.Status != run.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}

	aligns := 0
	for _, name := range calls {
		if name == "align" {
			aligns++
		}
		if name == "plan" || name == "render" {
			t.Fatalf("stage %s ran after a fatal alignment failure", name)
		}
	}
	if aligns != 1 {
		t.Fatalf("align executed %d times, want 1", aligns)
	}
}

func TestRunResumesAtFirstMissingArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryDelaySeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "2025-06-02")

	paths := run.NewPaths(cfg.RunsDir(), item.RunID)
	item.SourceFile = touch(t, paths.Source())
	item.ScriptFile = touch(t, paths.Script())
	item.AudioFile = touch(t, paths.Audio())
	item.SpansFile = touch(t, paths.Timestamps())
	touch(t, paths.ImageFor("topic-1"))
	item.SegmentsFile = touch(t, paths.Segments())
	item.SubtitleFile = touch(t, paths.Subtitles())
	// Timeline artifact intentionally missing: the plan stage must re-run.
	item.Status = run.StatusPlanned
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	var calls []string
	manager := New(cfg, store, fakeHandlers(cfg, &calls, nil), logging.NewNop())
	if err := manager.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"plan", "render"}
	if len(calls) != len(want) {
		t.Fatalf("stage calls = %v, want %v", calls, want)
	}
	for i, name := range want {
		if calls[i] != name {
			t.Fatalf("stage %d = %s, want %s", i, calls[i], name)
		}
	}
	if item.Status != run.StatusCompleted {
		t.Fatalf("status = %s, want completed", item.Status)
	}
}

func TestRunAfterRetrySkipsStagesWithArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryDelaySeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "2025-06-02")

	paths := run.NewPaths(cfg.RunsDir(), item.RunID)
	item.SourceFile = touch(t, paths.Source())
	item.ScriptFile = touch(t, paths.Script())
	item.AudioFile = touch(t, paths.Audio())
	item.SpansFile = touch(t, paths.Timestamps())
	item.SetFailed("image generation failure: illustrating: generate image")
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := store.RetryFailed(context.Background(), item.RunID); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	item, err := store.GetByRunID(context.Background(), item.RunID)
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}

	var calls []string
	manager := New(cfg, store, fakeHandlers(cfg, &calls, nil), logging.NewNop())
	if err := manager.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"illustrate", "align", "plan", "render"}
	if len(calls) != len(want) {
		t.Fatalf("stage calls = %v, want %v", calls, want)
	}
	for i, name := range want {
		if calls[i] != name {
			t.Fatalf("stage %d = %s, want %s", i, calls[i], name)
		}
	}
}

func TestRunRestartsInterruptedStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryDelaySeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "2025-06-02")

	paths := run.NewPaths(cfg.RunsDir(), item.RunID)
	item.SourceFile = touch(t, paths.Source())
	item.ScriptFile = touch(t, paths.Script())
	item.Status = run.StatusNarrating
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	var calls []string
	manager := New(cfg, store, fakeHandlers(cfg, &calls, nil), logging.NewNop())
	if err := manager.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(calls) == 0 || calls[0] != "narrate" {
		t.Fatalf("stage calls = %v, want resume at narrate", calls)
	}
	if item.Status != run.StatusCompleted {
		t.Fatalf("status = %s, want completed", item.Status)
	}
}

func TestRunCancellationRollsBackToStageEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.RetryDelaySeconds = 0
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewRun(t, store, "2025-06-02")

	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	handlers := fakeHandlers(cfg, &calls, map[string]func(ctx context.Context, item *run.Run) error{
		"script": func(ctx context.Context, item *run.Run) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		},
	})
	manager := New(cfg, store, handlers, logging.NewNop())

	err := manager.Run(ctx, item)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	stored, getErr := store.GetByRunID(context.Background(), item.RunID)
	if getErr != nil {
		t.Fatalf("GetByRunID: %v", getErr)
	}
	if stored.Status != run.StatusScraped {
		t.Fatalf("stored status = %s, want scraped", stored.Status)
	}
	if stored.Status.IsTerminal() {
		t.Fatal("cancelled run must stay resumable")
	}
}

func TestHealthReportsEveryStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	var calls []string
	handlers := fakeHandlers(cfg, &calls, nil)
	handlers.Render = nil
	manager := New(cfg, store, handlers, logging.NewNop())

	results := manager.Health(context.Background())
	if len(results) != 7 {
		t.Fatalf("health results = %d, want 7", len(results))
	}
	last := results[len(results)-1]
	if last.Ready {
		t.Fatal("missing handler must report unhealthy")
	}
}
