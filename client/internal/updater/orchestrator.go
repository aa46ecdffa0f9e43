package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// State names a step of the update state machine.
type State string

const (
	StateIdle                   State = "Idle"
	StateCheckingForUpdate      State = "CheckingForUpdate"
	StateDownloading            State = "Downloading"
	StateStaging                State = "Staging"
	StateRequestingPeerShutdown State = "RequestingPeerShutdown"
	StateAwaitingQuiescence     State = "AwaitingQuiescence"
	StateCopying                State = "Copying"
	StateRelaunching            State = "Relaunching"
	StateCompleted              State = "Completed"
	StateAborted                State = "Aborted"
)

// Abort reasons recorded when an attempt terminates in StateAborted.
const (
	AbortPeersDidNotStop    = "peers-did-not-stop"
	AbortSelfUpgradeRefused = "self-upgrade-refused"
	AbortCopyFailed         = "copy-failed"
	AbortRelaunchTimeout    = "relaunch-timeout"
	AbortRelaunchFailed     = "relaunch-failed"
	AbortStagingFailed      = "staging-failed"
	AbortTransportFailed    = "transport-failed"
	AbortCancelled          = "cancelled"
)

type packageStager interface {
	Stage(payload []byte) (StagedPackage, error)
}

type peerShutdownCoordinator interface {
	RequestShutdown(ctx context.Context)
	AwaitQuiescence(ctx context.Context) error
}

// Orchestrator sequences a single update attempt: availability check,
// chunked download, staging, peer shutdown, replication and relaunch.
// Only one attempt may be in flight at a time; a second Run while one
// is in progress is rejected with ErrUpdateInProgress.
type Orchestrator struct {
	client   Client
	identity ServiceIdentity
	paths    InstallationPaths

	stager      packageStager
	coordinator peerShutdownCoordinator
	mirror      func(source, destination string) error
	relauncher  Relauncher

	mu          sync.Mutex
	running     bool
	state       State
	abortReason string
}

// NewOrchestrator wires an orchestrator with the production
// collaborators for the named service.
func NewOrchestrator(client Client, identity ServiceIdentity, paths InstallationPaths, relauncher Relauncher) *Orchestrator {
	return &Orchestrator{
		client:      client,
		identity:    identity,
		paths:       paths,
		stager:      NewStager(identity.Name),
		coordinator: NewPeerCoordinator(identity.Name),
		mirror:      MirrorDirectory,
		relauncher:  relauncher,
		state:       StateIdle,
	}
}

// State returns the current state of the state machine.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// AbortReason returns why the last attempt aborted, or an empty string.
func (o *Orchestrator) AbortReason() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.abortReason
}

// Run executes one update attempt. A non-positive update offer returns
// the machine to Idle without touching the filesystem or any peer.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.begin() {
		return ErrUpdateInProgress
	}
	defer o.end()

	attemptLog := log.WithFields(log.Fields{
		"attempt": uuid.New().String(),
		"service": o.identity.Name,
	})

	o.setState(StateCheckingForUpdate)
	size, err := o.client.CheckForUpdate(ctx, o.identity)
	if err != nil {
		return o.abort(attemptLog, fmt.Errorf("%w: availability check: %v", ErrTransport, err))
	}

	offer := UpdateOffer{SizeBytes: size}
	if !offer.Available() {
		attemptLog.Debugf("no update available for version %s", o.identity.Version)
		o.setState(StateIdle)
		return nil
	}
	attemptLog.Infof("update offer of %d bytes", offer.SizeBytes)

	o.setState(StateDownloading)
	payload, err := DownloadPayload(ctx, o.client, o.identity, offer.SizeBytes)
	if err != nil {
		return o.abort(attemptLog, err)
	}

	o.setState(StateStaging)
	pkg, err := o.stager.Stage(payload)
	if err != nil {
		return o.abort(attemptLog, err)
	}

	// An upgrade must never overwrite the binaries it is executing
	// from, so refuse before any peer is stopped or any file replaced.
	if o.paths.SelfUpgrade() {
		return o.abort(attemptLog, fmt.Errorf("%w: target %s is the running directory",
			ErrSelfUpgradeRefused, o.paths.TargetDir))
	}

	if err := ctx.Err(); err != nil {
		return o.abort(attemptLog, fmt.Errorf("update cancelled before peer shutdown: %w", err))
	}

	o.setState(StateRequestingPeerShutdown)
	o.coordinator.RequestShutdown(ctx)

	o.setState(StateAwaitingQuiescence)
	if err := o.coordinator.AwaitQuiescence(ctx); err != nil {
		// staged files stay in place for a future retry
		return o.abort(attemptLog, err)
	}

	o.setState(StateCopying)
	if err := o.mirror(pkg.ExtractedPath, o.paths.TargetDir); err != nil {
		// The old instance is already stopped, so the service stays down
		// until an operator intervenes.
		wrapped := fmt.Errorf("%w: %v", ErrCopyFailure, err)
		attemptLog.WithFields(log.Fields{
			"source": pkg.ExtractedPath,
			"target": o.paths.TargetDir,
		}).Errorf("replication failed with the old instance already stopped: %v", wrapped)
		return o.abort(attemptLog, wrapped)
	}

	o.setState(StateRelaunching)
	if err := o.relauncher.Relaunch(ctx, o.paths.TargetDir); err != nil {
		return o.abort(attemptLog, err)
	}

	o.setState(StateCompleted)
	attemptLog.Infof("update completed, new instance running from %s", o.paths.TargetDir)
	return nil
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	o.abortReason = ""
	return true
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	log.Debugf("update state %s -> %s", o.state, s)
	o.state = s
}

func (o *Orchestrator) abort(attemptLog *log.Entry, err error) error {
	reason := reasonForError(err)

	o.mu.Lock()
	state := o.state
	o.state = StateAborted
	o.abortReason = reason
	o.mu.Unlock()

	attemptLog.WithFields(log.Fields{
		"state":  state,
		"reason": reason,
	}).Errorf("update attempt aborted: %v", err)
	return err
}

func reasonForError(err error) string {
	switch {
	case errors.Is(err, ErrSelfUpgradeRefused):
		return AbortSelfUpgradeRefused
	case errors.Is(err, ErrPeerShutdownTimeout):
		return AbortPeersDidNotStop
	case errors.Is(err, ErrCopyFailure):
		return AbortCopyFailed
	case errors.Is(err, ErrRelaunchTimeout):
		return AbortRelaunchTimeout
	case errors.Is(err, ErrRelaunchFailure):
		return AbortRelaunchFailed
	case errors.Is(err, ErrArchive):
		return AbortStagingFailed
	case errors.Is(err, ErrTransport):
		return AbortTransportFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return AbortCancelled
	default:
		return "aborted"
	}
}
