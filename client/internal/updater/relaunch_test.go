package updater

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kardianos/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServiceController struct {
	mu          sync.Mutex
	started     bool
	startErr    error
	statusCalls int

	// runningAfter is how many status polls pass before the service
	// reports running; a negative value means it never does
	runningAfter int
}

func (f *fakeServiceController) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return f.startErr
}

func (f *fakeServiceController) Status() (service.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.runningAfter >= 0 && f.statusCalls > f.runningAfter {
		return service.StatusRunning, nil
	}
	return service.StatusStopped, nil
}

func newTestServiceRelauncher(svc serviceController) *ServiceRelauncher {
	r := NewServiceRelauncher(svc, "fleetlink")
	r.timeout = 200 * time.Millisecond
	r.pollInterval = 10 * time.Millisecond
	return r
}

func TestServiceRelauncher_WaitsForRunningState(t *testing.T) {
	svc := &fakeServiceController{runningAfter: 2}
	r := newTestServiceRelauncher(svc)

	require.NoError(t, r.Relaunch(context.Background(), "/opt/fleetlink"))
	assert.True(t, svc.started)
	assert.GreaterOrEqual(t, svc.statusCalls, 3)
}

func TestServiceRelauncher_TimesOut(t *testing.T) {
	svc := &fakeServiceController{runningAfter: -1}
	r := newTestServiceRelauncher(svc)

	err := r.Relaunch(context.Background(), "/opt/fleetlink")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRelaunchTimeout)
}

func TestServiceRelauncher_StartFailure(t *testing.T) {
	svc := &fakeServiceController{startErr: errors.New("access denied")}
	r := newTestServiceRelauncher(svc)

	err := r.Relaunch(context.Background(), "/opt/fleetlink")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRelaunchFailure)
	assert.NotErrorIs(t, err, ErrRelaunchTimeout, "a start failure is not a readiness timeout")
	assert.Zero(t, svc.statusCalls, "status must not be polled when start fails")
}

func TestProcessRelauncher_StartFailure(t *testing.T) {
	r := NewProcessRelauncher("no-such-binary", nil)

	err := r.Relaunch(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRelaunchFailure)
	assert.NotErrorIs(t, err, ErrRelaunchTimeout)
}
