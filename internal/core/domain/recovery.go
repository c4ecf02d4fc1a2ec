package domain

// RecoveryStatus is the state of the recovery controller.
type RecoveryStatus string

const (
	RecoveryIdle      RecoveryStatus = "idle"
	RecoveryRunning   RecoveryStatus = "recovering"
	RecoveryFailed    RecoveryStatus = "failed"
	RecoveryExhausted RecoveryStatus = "exhausted"
)

// RecoveryState is a snapshot of the recovery controller.
type RecoveryState struct {
	Status   RecoveryStatus
	Attempts int

	// LastError is the most recent failure, nil after a success or reset.
	LastError error

	// CanRetry is false once the attempt budget is spent.
	// A manual reset is then required.
	CanRetry bool
}

// IsRecovering reports whether a recovery is in flight.
func (s RecoveryState) IsRecovering() bool {
	return s.Status == RecoveryRunning
}
