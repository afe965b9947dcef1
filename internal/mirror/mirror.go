// Package mirror implements the optional remote copy of per-user metrics.
// The mirror is best-effort and eventually consistent: local storage stays
// authoritative and mirror failures are never surfaced to the user.
package mirror

import (
	"context"

	"github.com/example/linguaquest/pkg/models"
)

// Mirror is the remote metrics document store
type Mirror interface {
	// SaveMetrics upserts the user's metrics document with merge semantics:
	// fields not written here are preserved on the remote side.
	SaveMetrics(ctx context.Context, userID string, m models.UserMetrics) error
	// LoadMetrics reads the user's metrics document. ok is false when the
	// user has no document yet.
	LoadMetrics(ctx context.Context, userID string) (models.UserMetrics, bool, error)
}
