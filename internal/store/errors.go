package store

import (
	"errors"

	"github.com/chunkynosher/quicktabs/internal/platform"
)

// Sentinel errors for the StateStore (spec §7 error taxonomy).
var (
	// ErrStorageUnavailable is returned once the store has classified a
	// prior failure as UNAVAILABLE: further writes fail fast.
	ErrStorageUnavailable = errors.New("store: storage unavailable")

	// ErrReadbackMismatch means the post-write read did not match what
	// was written — treated as transient and retried (spec §7).
	ErrReadbackMismatch = errors.New("store: readback validation failed")

	// ErrRecoveryFailed means neither the backup nor the empty-state
	// fallback could be established during recovery.
	ErrRecoveryFailed = errors.New("store: recovery failed")

	// ErrInvalidState is returned when a caller attempts to write a
	// state value that fails model.IsValid.
	ErrInvalidState = errors.New("store: invalid state")
)

// ErrorClass is the closed taxonomy every host-storage exception is
// mapped onto (spec §4.3 "Error classification").
type ErrorClass string

const (
	ErrorClassQuota       ErrorClass = "QUOTA"
	ErrorClassPermission  ErrorClass = "PERMISSION"
	ErrorClassUnavailable ErrorClass = "UNAVAILABLE"
	ErrorClassTransient   ErrorClass = "TRANSIENT"
	ErrorClassUnknown     ErrorClass = "UNKNOWN"
)

// Classify maps a raw storage error to its ErrorClass. Host platform
// backends are expected to return platform.ErrQuota/ErrPermission/
// ErrUnavailable so Classify can recognize them; anything else not
// recognized, including a nil err, is UNKNOWN.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorClassUnknown
	case errors.Is(err, platform.ErrQuota):
		return ErrorClassQuota
	case errors.Is(err, platform.ErrPermission):
		return ErrorClassPermission
	case errors.Is(err, platform.ErrUnavailable):
		return ErrorClassUnavailable
	case errors.Is(err, platform.ErrTransient):
		return ErrorClassTransient
	default:
		return ErrorClassUnknown
	}
}
