package updater

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultStopTimeout = time.Minute

// Manager runs the orchestrator as a single long-lived background task.
// Attempts are triggered on demand or by a periodic ticker; the
// cancellation signal is observed between state-machine steps, and
// Stop waits a bounded time for the task to end.
type Manager struct {
	orchestrator *Orchestrator

	checkInterval time.Duration
	stopTimeout   time.Duration

	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a manager polling for updates every checkInterval.
// A non-positive interval disables periodic polling; attempts then only
// run via TriggerCheck.
func NewManager(orchestrator *Orchestrator, checkInterval time.Duration) *Manager {
	return &Manager{
		orchestrator:  orchestrator,
		checkInterval: checkInterval,
		stopTimeout:   defaultStopTimeout,
		trigger:       make(chan struct{}, 1),
	}
}

// Start launches the background task. Calling Start twice is an error.
func (m *Manager) Start(ctx context.Context) {
	if m.cancel != nil {
		log.Errorf("update manager already started")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(ctx)
}

// TriggerCheck requests an update attempt. Requests arriving while an
// attempt is already queued coalesce into one.
func (m *Manager) TriggerCheck() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the background task and waits up to a minute for it to
// finish its current step.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()

	select {
	case <-m.done:
	case <-time.After(m.stopTimeout):
		log.Errorf("update manager did not stop within %v", m.stopTimeout)
	}
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.done)

	var tick <-chan time.Time
	if m.checkInterval > 0 {
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-m.trigger:
		}

		if err := m.orchestrator.Run(ctx); err != nil {
			if errors.Is(err, ErrUpdateInProgress) {
				log.Debugf("update attempt already running, skipping trigger")
				continue
			}
			// Run already logged the abort with full context.
			log.Debugf("update attempt finished with error: %v", err)
		}
	}
}
