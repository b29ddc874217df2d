package orchestration

import "errors"

var (
	ErrGeneratorNotConfigured = errors.New("generator not configured")
	ErrClosed                 = errors.New("orchestrator closed")

	// errCycleCancelled marks a cycle stopped by its context without a
	// barge-in, normally because the session is shutting down.
	errCycleCancelled = errors.New("processing cycle cancelled")
)
