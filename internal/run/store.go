package run

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"marketreel/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases with another version are rejected.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.WorkDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'marketreel clean --all' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// NewRun inserts a pending run for a trading day.
func (s *Store) NewRun(ctx context.Context, tradeDate string) (*Run, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	runID := uuid.NewString()

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (run_id, trade_date, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		runID,
		tradeDate,
		StatusPending,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a run by database identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	item, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return item, nil
}

// GetByRunID fetches a run by its public identifier.
func (s *Store) GetByRunID(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	item, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run by run_id: %w", err)
	}
	return item, nil
}

// Latest returns the most recently created run, or nil when none exist.
func (s *Store) Latest(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT 1`)
	item, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing run.
func (s *Store) Update(ctx context.Context, item *Run) error {
	if item == nil {
		return errors.New("run is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs
         SET title = ?, trade_date = ?, status = ?, source_file = ?, script_file = ?,
             audio_file = ?, spans_file = ?, segments_file = ?, subtitle_file = ?,
             timeline_file = ?, video_file = ?, final_file = ?, error_message = ?,
             attempt = ?, progress_stage = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(item.Title),
		nullableString(item.TradeDate),
		item.Status,
		nullableString(item.SourceFile),
		nullableString(item.ScriptFile),
		nullableString(item.AudioFile),
		nullableString(item.SpansFile),
		nullableString(item.SegmentsFile),
		nullableString(item.SubtitleFile),
		nullableString(item.TimelineFile),
		nullableString(item.VideoFile),
		nullableString(item.FinalFile),
		nullableString(item.ErrorMessage),
		item.Attempt,
		nullableString(item.ProgressStage),
		nullableString(item.ProgressMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// List returns runs filtered by status set (or all runs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Run, error) {
	var (
		rows *sql.Rows
		err  error
	)
	baseQuery := `SELECT ` + runColumns + ` FROM runs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var items []*Run
	for rows.Next() {
		item, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ResetStuckProcessing returns runs caught mid-stage to the start of that
// stage so a restart picks them up cleanly.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	var total int64
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for processing, stable := range processingRollbacks {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE runs
             SET status = ?, progress_stage = 'Reset from stuck processing',
                 progress_message = NULL, updated_at = ?
             WHERE status = ?`,
			stable,
			now,
			processing,
		)
		if err != nil {
			return total, fmt.Errorf("reset stuck runs: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// RetryFailed moves failed runs back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, runIDs ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(runIDs) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE runs
             SET status = ?, attempt = 0, error_message = NULL,
                 progress_stage = 'Retry requested', progress_message = NULL, updated_at = ?
             WHERE status = ?`,
			StatusPending,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed runs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(runIDs))
	args := make([]any, 0, len(runIDs)+2)
	args = append(args, StatusPending, now)
	for _, id := range runIDs {
		args = append(args, id)
	}
	query := `UPDATE runs
        SET status = ?, attempt = 0, error_message = NULL,
            progress_stage = 'Retry requested', progress_message = NULL, updated_at = ?
        WHERE run_id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected runs: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes completed runs and returns their run identifiers so
// the caller can remove their directories.
func (s *Store) ClearCompleted(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("query completed runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE status = ?`, StatusCompleted); err != nil {
		return nil, fmt.Errorf("clear completed runs: %w", err)
	}
	return ids, nil
}

// Stats returns a count of runs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const runColumns = "id, run_id, title, trade_date, status, source_file, script_file, audio_file, spans_file, segments_file, subtitle_file, timeline_file, video_file, final_file, error_message, attempt, progress_stage, progress_message, created_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id              int64
		runID           string
		title           sql.NullString
		tradeDate       sql.NullString
		statusStr       string
		sourceFile      sql.NullString
		scriptFile      sql.NullString
		audioFile       sql.NullString
		spansFile       sql.NullString
		segmentsFile    sql.NullString
		subtitleFile    sql.NullString
		timelineFile    sql.NullString
		videoFile       sql.NullString
		finalFile       sql.NullString
		errorMessage    sql.NullString
		attempt         sql.NullInt64
		progressStage   sql.NullString
		progressMessage sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&runID,
		&title,
		&tradeDate,
		&statusStr,
		&sourceFile,
		&scriptFile,
		&audioFile,
		&spansFile,
		&segmentsFile,
		&subtitleFile,
		&timelineFile,
		&videoFile,
		&finalFile,
		&errorMessage,
		&attempt,
		&progressStage,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Run{
		ID:              id,
		RunID:           runID,
		Title:           title.String,
		TradeDate:       tradeDate.String,
		Status:          Status(statusStr),
		SourceFile:      sourceFile.String,
		ScriptFile:      scriptFile.String,
		AudioFile:       audioFile.String,
		SpansFile:       spansFile.String,
		SegmentsFile:    segmentsFile.String,
		SubtitleFile:    subtitleFile.String,
		TimelineFile:    timelineFile.String,
		VideoFile:       videoFile.String,
		FinalFile:       finalFile.String,
		ErrorMessage:    errorMessage.String,
		Attempt:         int(attempt.Int64),
		ProgressStage:   progressStage.String,
		ProgressMessage: progressMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
