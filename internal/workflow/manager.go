package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"marketreel/internal/config"
	"marketreel/internal/logging"
	"marketreel/internal/run"
	"marketreel/internal/services"
	"marketreel/internal/stage"
)

// Handlers bundles one handler per pipeline stage.
type Handlers struct {
	Scrape     stage.Handler
	Script     stage.Handler
	Narrate    stage.Handler
	Illustrate stage.Handler
	Align      stage.Handler
	Plan       stage.Handler
	Render     stage.Handler
}

type pipelineStage struct {
	name       string
	label      string
	entry      run.Status
	processing run.Status
	done       run.Status
	handler    stage.Handler
	// verify reports whether the artifacts this stage persists are still on
	// disk; a false result on resume re-runs the stage.
	verify func(*run.Run) bool
}

// Manager drives one run through the pipeline stages in order, persisting
// artifact paths after every stage so an interrupted run resumes at the
// first gap.
type Manager struct {
	cfg    *config.Config
	store  *run.Store
	stages []pipelineStage
	logger *slog.Logger
}

// New constructs a workflow manager over the given store and handlers.
func New(cfg *config.Config, store *run.Store, handlers Handlers, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
	m.stages = []pipelineStage{
		{
			name: "scrape", label: "Ingesting market data",
			entry: run.StatusPending, processing: run.StatusScraping, done: run.StatusScraped,
			handler: handlers.Scrape,
			verify:  func(r *run.Run) bool { return fileExists(r.SourceFile) },
		},
		{
			name: "script", label: "Generating script",
			entry: run.StatusScraped, processing: run.StatusScripting, done: run.StatusScripted,
			handler: handlers.Script,
			verify:  func(r *run.Run) bool { return fileExists(r.ScriptFile) },
		},
		{
			name: "narrate", label: "Synthesizing narration",
			entry: run.StatusScripted, processing: run.StatusNarrating, done: run.StatusNarrated,
			handler: handlers.Narrate,
			verify:  func(r *run.Run) bool { return fileExists(r.AudioFile) && fileExists(r.SpansFile) },
		},
		{
			name: "illustrate", label: "Generating illustrations",
			entry: run.StatusNarrated, processing: run.StatusIllustrating, done: run.StatusIllustrated,
			handler: handlers.Illustrate,
			verify:  func(r *run.Run) bool { return dirHasFiles(run.NewPaths(cfg.RunsDir(), r.RunID).ImagesDir()) },
		},
		{
			name: "align", label: "Aligning transcript",
			entry: run.StatusIllustrated, processing: run.StatusAligning, done: run.StatusAligned,
			handler: handlers.Align,
			verify:  func(r *run.Run) bool { return fileExists(r.SegmentsFile) && fileExists(r.SubtitleFile) },
		},
		{
			name: "plan", label: "Planning scenes",
			entry: run.StatusAligned, processing: run.StatusPlanning, done: run.StatusPlanned,
			handler: handlers.Plan,
			verify:  func(r *run.Run) bool { return fileExists(r.TimelineFile) },
		},
		{
			name: "render", label: "Rendering video",
			entry: run.StatusPlanned, processing: run.StatusRendering, done: run.StatusCompleted,
			handler: handlers.Render,
			verify:  func(r *run.Run) bool { return fileExists(r.FinalFile) },
		},
	}
	return m
}

// Run executes the pipeline for one run until it completes or fails.
// Collaborator stage failures are retried with bounded attempts; everything
// else halts the run. Context cancellation rolls the run back to the start
// of the interrupted stage and returns.
func (m *Manager) Run(ctx context.Context, item *run.Run) error {
	if item == nil {
		return errors.New("run is nil")
	}
	if err := m.reconcile(ctx, item); err != nil {
		return err
	}

	baseCtx := services.WithRunID(ctx, item.RunID)
	logger := logging.WithContext(baseCtx, m.logger)

	for !item.Status.IsTerminal() {
		st, ok := m.stageForStatus(item.Status)
		if !ok {
			item.SetFailed(fmt.Sprintf("no stage accepts status %q", item.Status))
			if err := m.store.Update(ctx, item); err != nil {
				return err
			}
			return fmt.Errorf("no stage accepts status %q", item.Status)
		}

		stageCtx := services.WithStage(baseCtx, st.name)
		if item.Attempt > 0 {
			stageCtx = services.WithAttempt(stageCtx, item.Attempt+1)
		}
		stageLogger := logging.WithContext(stageCtx, m.logger)

		item.Status = st.processing
		item.SetProgress(st.label, st.label+" started")
		item.ErrorMessage = ""
		if err := m.store.Update(ctx, item); err != nil {
			return fmt.Errorf("persist processing transition: %w", err)
		}

		stageStart := time.Now()
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.String("processing_status", string(st.processing)),
		)

		execErr := st.handler.Prepare(stageCtx, item)
		if execErr == nil {
			if err := m.store.Update(ctx, item); err != nil {
				return fmt.Errorf("persist stage preparation: %w", err)
			}
			execErr = st.handler.Execute(stageCtx, item)
		}

		if execErr != nil {
			if ctx.Err() != nil {
				item.Status = st.entry
				item.SetProgress(st.label, "interrupted")
				if err := m.store.Update(context.WithoutCancel(ctx), item); err != nil {
					stageLogger.Error("failed to persist interruption", logging.Error(err))
				}
				return ctx.Err()
			}
			if handled, err := m.handleStageFailure(ctx, stageLogger, st, item, execErr); handled {
				if err != nil {
					return err
				}
				continue
			}
			return execErr
		}

		item.Status = st.done
		item.Attempt = 0
		item.SetProgress(st.label, st.label+" finished")
		if err := m.store.Update(ctx, item); err != nil {
			return fmt.Errorf("persist stage result: %w", err)
		}
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("next_status", string(item.Status)),
			logging.String("stage_duration", time.Since(stageStart).Round(time.Millisecond).String()),
		)
	}

	if item.Status == run.StatusCompleted {
		logger.Info("run completed", logging.String("final_file", item.FinalFile))
	}
	return nil
}

// handleStageFailure applies the retry policy. It returns handled=true when
// the run keeps going (a retry was scheduled) or was marked failed; err is
// non-nil only when persistence itself broke.
func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, st pipelineStage, item *run.Run, execErr error) (bool, error) {
	if services.IsRetryable(execErr) && item.Attempt+1 < m.cfg.Workflow.MaxAttempts {
		item.Attempt++
		item.Status = st.entry
		item.SetProgress(st.label, fmt.Sprintf("retrying after failure (attempt %d of %d)", item.Attempt+1, m.cfg.Workflow.MaxAttempts))
		if err := m.store.Update(ctx, item); err != nil {
			return true, fmt.Errorf("persist retry transition: %w", err)
		}
		logger.Warn("stage failed, retrying",
			logging.Error(execErr),
			logging.Int("attempt", item.Attempt+1),
			logging.Int("max_attempts", m.cfg.Workflow.MaxAttempts),
		)
		if err := m.wait(ctx); err != nil {
			return true, err
		}
		return true, nil
	}

	item.SetFailed(execErr.Error())
	if err := m.store.Update(ctx, item); err != nil {
		return true, fmt.Errorf("persist failure: %w", err)
	}
	logger.Error("stage failed", logging.Error(execErr))
	return false, nil
}

func (m *Manager) wait(ctx context.Context) error {
	delay := time.Duration(m.cfg.Workflow.RetryDelaySeconds) * time.Second
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reconcile realigns the run's status with what is actually on disk: a run
// caught mid-stage restarts that stage, and otherwise the artifacts decide
// the resume point. The first stage whose outputs are missing runs next, so
// a retried run never re-pays collaborators for work it already has.
func (m *Manager) reconcile(ctx context.Context, item *run.Run) error {
	original := item.Status

	for processing, st := range m.processingIndex() {
		if item.Status == processing {
			item.Status = st.entry
		}
	}

	if !item.Status.IsTerminal() {
		item.Status = run.StatusCompleted
		for _, st := range m.stages {
			if !st.verify(item) {
				item.Status = st.entry
				break
			}
		}
	}

	if item.Status != original {
		item.SetProgress("Resuming", fmt.Sprintf("resumed from %s", item.Status))
		if err := m.store.Update(ctx, item); err != nil {
			return fmt.Errorf("persist resume point: %w", err)
		}
		logging.WithContext(ctx, m.logger).Info("run resumed",
			logging.String("run_id", item.RunID),
			logging.String("from", string(original)),
			logging.String("at", string(item.Status)),
		)
	}
	return nil
}

func (m *Manager) stageForStatus(status run.Status) (pipelineStage, bool) {
	for _, st := range m.stages {
		if st.entry == status {
			return st, true
		}
	}
	return pipelineStage{}, false
}

func (m *Manager) processingIndex() map[run.Status]pipelineStage {
	index := make(map[run.Status]pipelineStage, len(m.stages))
	for _, st := range m.stages {
		index[st.processing] = st
	}
	return index
}

// Health reports the readiness of every configured stage.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	results := make([]stage.Health, 0, len(m.stages))
	for _, st := range m.stages {
		if st.handler == nil {
			results = append(results, stage.Unhealthy(st.name, "no handler configured"))
			continue
		}
		results = append(results, st.handler.HealthCheck(ctx))
	}
	return results
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirHasFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return true
		}
	}
	return false
}
