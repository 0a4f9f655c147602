package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying every failure the pipeline can surface.
//
// The first three come from external collaborators and are retryable by the
// orchestrator with bounded attempts. The remaining ones indicate a structural
// mismatch in the run itself and are fatal: the run halts at the failing stage
// and a resumed run retries from there.
var (
	ErrIngest          = errors.New("market data ingest failure")
	ErrGeneration      = errors.New("script generation failure")
	ErrSynthesis       = errors.New("narration synthesis failure")
	ErrImageGeneration = errors.New("image generation failure")

	ErrAlignment       = errors.New("alignment failure")
	ErrUnresolvedTopic = errors.New("unresolved topic")
	ErrRender          = errors.New("render failure")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the orchestrator may re-run the failing stage.
// Only collaborator failures qualify; core failures never do.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrIngest),
		errors.Is(err, ErrGeneration),
		errors.Is(err, ErrSynthesis),
		errors.Is(err, ErrImageGeneration):
		return true
	default:
		return false
	}
}

// IsFatal reports whether the error must halt the run without local retries.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !IsRetryable(err)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
