package session

import "casino-client/internal/models"

type NotificationKind string

const (
	NotifyResolved          NotificationKind = "resolved"
	NotifyEnded             NotificationKind = "ended"
	NotifySessionError      NotificationKind = "session_error"
	NotifyTimeout           NotificationKind = "timeout"
	NotifyFairnessViolation NotificationKind = "fairness_violation"
)

// Notification is pushed to the session's observer channel on every
// externally visible transition. At most one of the payload fields is
// set.
type Notification struct {
	Kind NotificationKind
	Roll *models.RollHistoryEntry
	Flip *models.FlipHistoryEntry
	Err  error
}
