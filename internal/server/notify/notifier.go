// Package notify delivers grant lifecycle notifications to grantees.
// Delivery is always fire-and-forget: the grant transaction has already
// committed by the time a notification is sent, and a delivery failure must
// never surface to the granting caller.
package notify

import (
	"context"

	"github.com/genovault/genovault/internal/logging"
)

// Event types sent to grantees.
const (
	EventAccessGranted = "access_granted"
	EventAccessRevoked = "access_revoked"
)

// Notifier sends a single notification. Implementations may deliver by
// email, push, or webhook; errors are returned for logging only.
type Notifier interface {
	Notify(ctx context.Context, granteeID, event, fileID string) error
}

// LogNotifier records notifications in the structured log. The default
// implementation until a real delivery channel is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, granteeID, event, fileID string) error {
	n.logger.Info(ctx, "notification", "grantee_id", granteeID, "event", event, "file_id", fileID)
	return nil
}
