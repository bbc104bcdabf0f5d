package outbox

import (
	"context"
	"time"

	"github.com/amasampo/mesh/internal/store"
)

// SimulatedUploader stands in for the remote mesh backend: it sleeps for a
// fixed latency and always succeeds. The queue/drain contract stays
// unchanged when a real network client replaces it.
type SimulatedUploader struct {
	Latency time.Duration
}

// Upload waits out the simulated round trip, honoring the deadline.
func (u *SimulatedUploader) Upload(ctx context.Context, _ store.OutboxEntry) error {
	if u.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(u.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
