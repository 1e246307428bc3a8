package training

import "errors"

var (
	// ErrRejectedStart is returned when a run is requested with an empty curriculum.
	// The rejection is recorded as an error log entry; the status does not change.
	ErrRejectedStart = errors.New("start rejected: curriculum is empty")

	// ErrInvalidTransition is returned when a command has no transition from the current status.
	// The command has no effect.
	ErrInvalidTransition = errors.New("command not valid in current run status")

	// ErrConcurrentRestore is returned when a restore is attempted while a settle timer or
	// tick loop is armed.
	ErrConcurrentRestore = errors.New("cannot restore while a run is preparing or training")

	// ErrInvalidState is returned when a state handed to Restore is malformed
	ErrInvalidState = errors.New("invalid run state")
)
