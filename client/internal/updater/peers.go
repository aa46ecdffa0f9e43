package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
)

const (
	defaultGracePeriod        = 10 * time.Second
	defaultQuiescenceDeadline = 30 * time.Second
	defaultPeerPollInterval   = time.Second
)

// peerProcess is a running OS process sharing the service's configured
// name. The narrow surface keeps the coordinator testable without a
// live process table.
type peerProcess interface {
	Pid() int32
	Terminate() error
	Kill() error
	Running() (bool, error)
}

// processLister recomputes the peer set, excluding the current process.
// It is invoked fresh on every coordination step, never cached.
type processLister func() ([]peerProcess, error)

// PeerCoordinator ensures no other instance of the named service is
// running before files are replaced. Phase one politely asks every peer
// to stop and escalates to a forceful kill after a grace period; phase
// two polls the process table until the peer set is empty or the
// quiescence deadline elapses.
type PeerCoordinator struct {
	serviceName string

	list processLister

	gracePeriod        time.Duration
	quiescenceDeadline time.Duration
	pollInterval       time.Duration
}

// NewPeerCoordinator creates a coordinator matching peers on the given
// service name against the live OS process table.
func NewPeerCoordinator(serviceName string) *PeerCoordinator {
	selfPID := int32(os.Getpid())
	return &PeerCoordinator{
		serviceName: serviceName,
		list: func() ([]peerProcess, error) {
			return listPeerProcesses(serviceName, selfPID)
		},
		gracePeriod:        defaultGracePeriod,
		quiescenceDeadline: defaultQuiescenceDeadline,
		pollInterval:       defaultPeerPollInterval,
	}
}

// RequestShutdown sends every peer a polite close request, waits up to
// the grace period for it to exit and kills it forcefully otherwise.
// The phase is best-effort and never fails for an individual peer;
// stragglers are absorbed by the quiescence wait.
func (c *PeerCoordinator) RequestShutdown(ctx context.Context) {
	peers, err := c.list()
	if err != nil {
		log.Warnf("failed to list peer processes: %v", err)
		return
	}

	for _, peer := range peers {
		log.Infof("requesting shutdown of peer process %d", peer.Pid())
		if err := peer.Terminate(); err != nil {
			log.Warnf("graceful stop request to peer %d failed: %v", peer.Pid(), err)
		}

		if c.waitForExit(ctx, peer) {
			log.Debugf("peer process %d exited", peer.Pid())
			continue
		}

		log.Warnf("peer process %d did not exit within %v, killing it", peer.Pid(), c.gracePeriod)
		if err := peer.Kill(); err != nil {
			log.Warnf("failed to kill peer process %d: %v", peer.Pid(), err)
		}
	}
}

// AwaitQuiescence polls the process table, recomputing the peer set
// each time, until no peers remain or the deadline elapses. A non-empty
// peer set at the deadline fails the whole coordination step; there is
// no partial proceed.
func (c *PeerCoordinator) AwaitQuiescence(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.quiescenceDeadline)
	defer cancel()

	operation := func() error {
		peers, err := c.list()
		if err != nil {
			return fmt.Errorf("list peer processes: %w", err)
		}
		if len(peers) > 0 {
			return fmt.Errorf("%d peer processes still running", len(peers))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), waitCtx)
	if err := backoff.Retry(operation, bo); err != nil {
		// an agent shutdown during the wait is a cancellation, not a
		// peer failure
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return fmt.Errorf("%w: %v", ErrPeerShutdownTimeout, err)
	}

	return nil
}

func (c *PeerCoordinator) waitForExit(ctx context.Context, peer peerProcess) bool {
	ctx, cancel := context.WithTimeout(ctx, c.gracePeriod)
	defer cancel()

	operation := func() error {
		running, err := peer.Running()
		if err != nil {
			// the process table entry is gone
			return nil
		}
		if running {
			return fmt.Errorf("peer %d still running", peer.Pid())
		}
		return nil
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(c.pollInterval), ctx)
	return backoff.Retry(operation, bo) == nil
}

type gopsutilProcess struct {
	p *process.Process
}

func (g gopsutilProcess) Pid() int32             { return g.p.Pid }
func (g gopsutilProcess) Terminate() error       { return g.p.Terminate() }
func (g gopsutilProcess) Kill() error            { return g.p.Kill() }
func (g gopsutilProcess) Running() (bool, error) { return g.p.IsRunning() }

func listPeerProcesses(serviceName string, selfPID int32) ([]peerProcess, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("read process table: %w", err)
	}

	var peers []peerProcess
	for _, p := range procs {
		if p.Pid == selfPID {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue
		}
		if matchesServiceName(name, serviceName) {
			peers = append(peers, gopsutilProcess{p: p})
		}
	}

	return peers, nil
}

func matchesServiceName(processName, serviceName string) bool {
	processName = strings.TrimSuffix(processName, filepath.Ext(processName))
	return strings.EqualFold(processName, serviceName)
}
