package checker

import (
	"context"
	"time"

	"github.com/JakeFAU/cagewatch/internal/fetcher"
	"github.com/JakeFAU/cagewatch/internal/metrics"
)

// Artifacts persists the debug material of a run.
type Artifacts interface {
	RecordCheckTime(ctx context.Context, at time.Time) error
	RecordPage(ctx context.Context, page fetcher.Page) error
	RecordRun(ctx context.Context, v any) error
}

// Emitter hands the notify flag and message to the next automation step.
type Emitter interface {
	Emit(notify bool, message string) error
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Metrics records run gauges and writes them out.
type Metrics interface {
	ObserveRun(run metrics.Run)
	WriteTextfile(path string) error
}

// Hasher computes content digests for the run record.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
