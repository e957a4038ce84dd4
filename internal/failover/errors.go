package failover

import (
	"errors"
	"fmt"

	"github.com/i-melnichenko/ha-failover/internal/job"
)

var (
	// ErrIgnoreEvent is returned when an event is dropped by validation or
	// by a transition that found nothing safe to do. It wraps job.ErrAborted
	// so the transition job terminates as ABORTED.
	ErrIgnoreEvent = fmt.Errorf("failover: event ignored: %w", job.ErrAborted)

	// ErrAllPoolsFailedToImport is returned when a MASTER transition could not
	// import a single pool.
	ErrAllPoolsFailedToImport = errors.New("failover: all pools failed to import")

	// ErrPoolNotFound is returned by Storage.Import when the pool cannot be
	// located through the given import path (for example a stale cache-file).
	ErrPoolNotFound = errors.New("failover: pool not found")

	// ErrNotLicensed is returned when an operation requires an HA license.
	ErrNotLicensed = errors.New("failover: not licensed for high availability")

	// ErrManualNode is returned when master selection needs a node slot but
	// this controller is configured as MANUAL.
	ErrManualNode = errors.New("failover: node slot is MANUAL")

	// ErrNotMaster is returned when a MASTER-only operation runs elsewhere.
	ErrNotMaster = errors.New("failover: this node is not MASTER")

	// ErrNotBackup is returned when a BACKUP-only operation runs elsewhere.
	ErrNotBackup = errors.New("failover: this node is not BACKUP")

	// ErrNoCriticalInterfaces is returned when enabling failover with no
	// critical interface configured.
	ErrNoCriticalInterfaces = errors.New("failover: at least one critical interface is required")

	// ErrPathNotAllowed is returned when the peer pushes a file outside the
	// receive allow-list.
	ErrPathNotAllowed = errors.New("failover: path is not allowed")

	// ErrInvalidArgument wraps malformed requests.
	ErrInvalidArgument = errors.New("failover: invalid argument")
)

// Fenced start exit codes.
const (
	FencedOK             = 0
	FencedRegisterFailed = 1
	FencedRunningRemote  = 2
	FencedReserveFailed  = 3
	FencedFatal          = 5
	FencedAlreadyRunning = 6
)

// FencedError reports a non-zero exit code from the fencing helper.
type FencedError struct {
	Code int
}

func (e *FencedError) Error() string {
	switch e.Code {
	case FencedRegisterFailed:
		return "failover: fenced failed to register keys on disks"
	case FencedRunningRemote:
		return "failover: fenced is running on the remote node"
	case FencedReserveFailed:
		return "failover: 10% or more of the disks failed to be reserved"
	case FencedFatal:
		return "failover: fenced encountered an unexpected fatal error"
	default:
		return fmt.Sprintf("failover: fenced exited with unexpected code %d", e.Code)
	}
}
