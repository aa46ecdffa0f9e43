package updater

import "errors"

// Every fatal condition aborts the whole update attempt; nothing is
// retried automatically. An external scheduler decides whether to
// check again later.
var (
	// ErrTransport indicates a chunk fetch or availability check failed.
	ErrTransport = errors.New("update transport failure")

	// ErrArchive indicates a missing, unreadable or corrupt update archive.
	ErrArchive = errors.New("update archive failure")

	// ErrPeerShutdownTimeout indicates other running instances did not
	// stop within the quiescence deadline.
	ErrPeerShutdownTimeout = errors.New("peers did not stop")

	// ErrSelfUpgradeRefused indicates the upgrade target directory is the
	// directory the current binaries are executing from.
	ErrSelfUpgradeRefused = errors.New("refusing to upgrade the running installation in place")

	// ErrCopyFailure indicates replication into the target directory was
	// interrupted. The old instance is already stopped at this point, so
	// this is the highest-severity failure.
	ErrCopyFailure = errors.New("copying update files failed")

	// ErrRelaunchTimeout indicates the upgraded instance did not reach a
	// running state within the relaunch deadline.
	ErrRelaunchTimeout = errors.New("relaunched service did not reach running state")

	// ErrRelaunchFailure indicates the upgraded instance could not be
	// started at all, as opposed to starting and never becoming ready.
	ErrRelaunchFailure = errors.New("relaunching the upgraded service failed")

	// ErrUpdateInProgress indicates a second update attempt was requested
	// while one is already running.
	ErrUpdateInProgress = errors.New("update already in progress")
)
