package stage

import (
	"context"

	"marketreel/internal/run"
)

// Handler is one pipeline stage. Prepare validates prerequisites and must be
// cheap to re-run; Execute does the work and records artifact paths on the
// run; HealthCheck reports collaborator readiness without side effects.
type Handler interface {
	Prepare(ctx context.Context, item *run.Run) error
	Execute(ctx context.Context, item *run.Run) error
	HealthCheck(ctx context.Context) Health
}
