package updater

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdleOrchestrator(client *fakeClient) *Orchestrator {
	identity := ServiceIdentity{Name: "fleetlink", Version: "1.0.0"}
	paths := InstallationPaths{RunningDir: "/opt/fleetlink-old", TargetDir: "/opt/fleetlink"}
	return NewOrchestrator(client, identity, paths, &fakeRelauncher{})
}

func TestManager_TriggerRunsAttempt(t *testing.T) {
	client := &fakeClient{size: 0}
	m := NewManager(newIdleOrchestrator(client), 0)

	m.Start(context.Background())
	defer m.Stop()

	m.TriggerCheck()

	require.Eventually(t, func() bool {
		return client.checkCalls.Load() >= 1
	}, time.Second, 10*time.Millisecond, "trigger must cause an availability check")
}

func TestManager_PeriodicCheck(t *testing.T) {
	client := &fakeClient{size: 0}
	m := NewManager(newIdleOrchestrator(client), 20*time.Millisecond)

	m.Start(context.Background())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return client.checkCalls.Load() >= 2
	}, time.Second, 10*time.Millisecond, "periodic polling must keep checking")
}

func TestManager_StopIsBounded(t *testing.T) {
	m := NewManager(newIdleOrchestrator(&fakeClient{size: 0}), 0)
	m.Start(context.Background())

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return in time")
	}
}

func TestManager_StartTwiceIsNoop(t *testing.T) {
	client := &fakeClient{size: 0}
	m := NewManager(newIdleOrchestrator(client), 0)

	m.Start(context.Background())
	m.Start(context.Background())
	defer m.Stop()

	m.TriggerCheck()

	require.Eventually(t, func() bool {
		return client.checkCalls.Load() >= 1
	}, time.Second, 10*time.Millisecond)
	assert.NotNil(t, m.done)
}
