// Package notify delivers freshly created leaderboard entries to the
// outside world. Delivery failures are reported to the caller but never
// retract an already-persisted entry.
package notify

import (
	"context"

	"github.com/johncmanuel/isabot/internal/domain"
)

// Notifier publishes a leaderboard entry to one outbound channel.
type Notifier interface {
	PublishEntry(ctx context.Context, entry domain.LeaderboardEntry) error
}
