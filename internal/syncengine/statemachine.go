package syncengine

import "github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"

// admitted is the state-machine table from spec.md §4.2: pending→running
// (start); running→running (switch); running↔paused (pause/resume);
// {running,paused}→completed (complete); running→expired (via timeout,
// applied internally by switch). Complete with the cancel outcome is not
// checked against this table: applyComplete admits it from any status
// but completed or cancelled.
var admitted = map[string]map[session.Status]bool{
	"start": {
		session.StatusPending: true,
	},
	"switch": {
		session.StatusRunning: true,
	},
	"pause": {
		session.StatusRunning: true,
	},
	"resume": {
		session.StatusPaused: true,
	},
	"complete": {
		session.StatusRunning: true,
		session.StatusPaused:  true,
	},
}

func requireStatus(s *session.Session, operation string) error {
	allowed, ok := admitted[operation]
	if !ok || !allowed[s.Status] {
		return invalidTransition(string(s.Status), operation)
	}
	return nil
}
