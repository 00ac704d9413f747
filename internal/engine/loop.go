package engine

import (
	"context"
	"time"

	"github.com/iff-guardian/nanoguard/internal/bus"
)

// pollInterval matches the swarm manager's own background worker cadence.
const pollInterval = 50 * time.Millisecond

// RunDrainLoop drains b's pending queue and dispatches each event to its
// subscribers until ctx is done. This is the bus-side counterpart to the
// swarm manager's own worker loop; the two are independent consumers of
// events submitted through ingress.
func RunDrainLoop(ctx context.Context, b *bus.Bus) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, event := range b.Drain() {
				b.Dispatch(event)
			}
		}
	}
}
