package thread

import "fmt"

// ErrorKind classifies send-pipeline failures.
type ErrorKind string

const (
	// KindPresend — generation failed before any content was produced;
	// the optimistic message is rolled back.
	KindPresend ErrorKind = "presend"
	// KindRunActive — a run is already active for the thread; the engine
	// rolls back the optimistic message and falls back to polling.
	KindRunActive ErrorKind = "run_active"
	// KindStream — failure after streaming began; partial content may
	// already be visible, so the optimistic message stays.
	KindStream ErrorKind = "stream"
	// KindTimeout — the polling fallback hit its wall-clock limit; the
	// run's true status remains unknown.
	KindTimeout ErrorKind = "timeout"
	// KindValidation — rejected synchronously (empty text, concurrent
	// send); never reaches the network.
	KindValidation ErrorKind = "validation"
	// KindTransient — a single failed out-of-band call (history page,
	// result fetch, publish); existing messages are kept.
	KindTransient ErrorKind = "transient"
)

// SendError is the typed failure surfaced through the manager's lastError
// view. WasSent tells the UI whether the user's message reached the server
// (and the optimistic bubble should stay visible).
type SendError struct {
	Kind    ErrorKind `json:"kind"`
	Detail  string    `json:"detail"`
	WasSent bool      `json:"was_sent"`
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// SendResult is delivered to the PostMessage callback.
type SendResult struct {
	OK  bool
	Err *SendError
}
