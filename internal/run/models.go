package run

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a run.
type Status string

const (
	StatusPending      Status = "pending"
	StatusScraping     Status = "scraping"
	StatusScraped      Status = "scraped"
	StatusScripting    Status = "scripting"
	StatusScripted     Status = "scripted"
	StatusNarrating    Status = "narrating"
	StatusNarrated     Status = "narrated"
	StatusIllustrating Status = "illustrating"
	StatusIllustrated  Status = "illustrated"
	StatusAligning     Status = "aligning"
	StatusAligned      Status = "aligned"
	StatusPlanning     Status = "planning"
	StatusPlanned      Status = "planned"
	StatusRendering    Status = "rendering"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusScraping,
	StatusScraped,
	StatusScripting,
	StatusScripted,
	StatusNarrating,
	StatusNarrated,
	StatusIllustrating,
	StatusIllustrated,
	StatusAligning,
	StatusAligned,
	StatusPlanning,
	StatusPlanned,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// processingRollbacks maps each in-flight status to the stable status a run
// returns to when the process died mid-stage.
var processingRollbacks = map[Status]Status{
	StatusScraping:     StatusPending,
	StatusScripting:    StatusScraped,
	StatusNarrating:    StatusScripted,
	StatusIllustrating: StatusNarrated,
	StatusAligning:     StatusIllustrated,
	StatusPlanning:     StatusAligned,
	StatusRendering:    StatusPlanned,
}

// Run is one report production persisted in SQLite. Artifact columns record
// where each completed stage left its output so a restart can resume from
// the first missing artifact.
type Run struct {
	ID              int64
	RunID           string
	Title           string
	TradeDate       string
	Status          Status
	SourceFile      string
	ScriptFile      string
	AudioFile       string
	SpansFile       string
	SegmentsFile    string
	SubtitleFile    string
	TimelineFile    string
	VideoFile       string
	FinalFile       string
	ErrorMessage    string
	Attempt         int
	ProgressStage   string
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether the status reflects an in-flight stage.
func (s Status) IsProcessing() bool {
	_, ok := processingRollbacks[s]
	return ok
}

// IsTerminal reports whether the run has finished, successfully or not.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SetProgress updates the progress fields together.
func (r *Run) SetProgress(stage, message string) {
	r.ProgressStage = stage
	r.ProgressMessage = message
}

// SetFailed marks the run as failed with the given error message.
func (r *Run) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.ProgressStage = "Failed"
	r.ProgressMessage = message
}
